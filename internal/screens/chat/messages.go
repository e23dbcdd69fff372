package chat

// replyStartedMsg is sent when the proxy accepted the message and the reply
// body starts streaming.
type replyStartedMsg struct {
	gen int
}

// replyChunkMsg carries one streamed increment of the reply.
type replyChunkMsg struct {
	gen  int
	text string
}

// replyDoneMsg is sent when the reply stream ends.
type replyDoneMsg struct {
	gen int
	err error
}
