package quiz

import (
	"slices"
	"time"
)

// Attempt is the persisted record of a graded quiz. PresentedOrder keeps the
// shuffled choices exactly as they were shown so a reload redisplays them.
type Attempt struct {
	Responses      []*string  `json:"responses"`
	Results        []*bool    `json:"results"`
	Graded         bool       `json:"showResults"`
	Timestamp      time.Time  `json:"timestamp"`
	PresentedOrder [][]string `json:"presentedOrder"`
	UnitQuiz       bool       `json:"isUnitQuiz"`
}

// Tally counts the non-null results and how many of them are true.
func (a *Attempt) Tally() (answered, correct int) {
	if a == nil {
		return 0, 0
	}
	for _, r := range a.Results {
		if r == nil {
			continue
		}
		answered++
		if *r {
			correct++
		}
	}
	return answered, correct
}

// Clone returns a deep copy of a.
func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	c.Responses = make([]*string, len(a.Responses))
	for i, r := range a.Responses {
		if r != nil {
			v := *r
			c.Responses[i] = &v
		}
	}
	c.Results = make([]*bool, len(a.Results))
	for i, r := range a.Results {
		if r != nil {
			v := *r
			c.Results[i] = &v
		}
	}
	c.PresentedOrder = make([][]string, len(a.PresentedOrder))
	for i, o := range a.PresentedOrder {
		c.PresentedOrder[i] = slices.Clone(o)
	}
	return &c
}

// Percentage returns correct/total*100 rounded half up, or 0 when total is 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}
