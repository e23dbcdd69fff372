package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abhisek/studylm/internal/app"
	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/session"
	"github.com/abhisek/studylm/internal/studyguide"
)

// runApp opens the store, builds dependencies, and launches the TUI.
func runApp(cmd *cobra.Command) error {
	ctx := cmd.Context()

	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := parseMode(modeFlag)
	if err != nil {
		return err
	}
	api, _ := cmd.Flags().GetString("api")
	api = strings.TrimRight(api, "/")
	source, _ := cmd.Flags().GetString("content")
	if source == "" {
		source = api + "/" + content.FileName
	}

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	// The TUI owns the terminal.
	log := logrus.New()
	log.SetOutput(io.Discard)

	kv := st.KVRepo()
	eventRepo := st.EventRepo()

	progOpts := []progress.Option{progress.WithLogger(log), progress.WithQuizLog(eventRepo)}
	if mode != "" {
		progOpts = append(progOpts, progress.WithModeOverride(mode))
	}

	sess, err := session.New(ctx, session.Options{
		Progress:   progress.Open(ctx, kv, progOpts...),
		Transcript: chat.LoadTranscript(ctx, kv, chat.WithTranscriptLogger(log)),
		Chat:       chat.NewClient(api, nil),
		Uploader:   studyguide.NewClient(api, nil),
		Loader:     content.NewLoader(source, kv, content.WithLogger(log)),
		Cache:      kv,
		Events:     eventRepo,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	return app.Run(sess)
}
