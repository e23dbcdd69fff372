package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/quiz"
	"github.com/abhisek/studylm/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show quiz statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		ps := progress.Open(ctx, s.KVRepo(), progress.WithLogger(stderrLogger()))
		st := ps.QuizStats()

		fmt.Println("Quiz Statistics")
		fmt.Println(strings.Repeat("─", 44))
		fmt.Printf("%-16s  %8s  %8s  %6s\n", "", "Answered", "Correct", "%")
		fmt.Println(strings.Repeat("─", 44))
		printTally("Sections", st.Sections)
		printTally("Unit quizzes", st.UnitQuizzes)
		fmt.Println(strings.Repeat("─", 44))
		printTally("TOTAL", progress.Tally{Answered: st.Total, Correct: st.Correct})
		fmt.Printf("\nUnits completed: %d\n", ps.CompletedCount())

		events, err := s.EventRepo().QueryQuizEvents(ctx, store.QueryOpts{Limit: limit})
		if err != nil {
			return fmt.Errorf("query quiz events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		fmt.Println()
		fmt.Println("Recent attempts")
		fmt.Println(strings.Repeat("─", 44))
		for _, e := range events {
			where := fmt.Sprintf("unit %d section %d", e.UnitIndex+1, e.SectionIndex+1)
			if e.UnitQuiz {
				where = fmt.Sprintf("unit %d quiz", e.UnitIndex+1)
			}
			fmt.Printf("%-19s  %-20s  %3d/%-3d  %3d%%\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				where, e.Correct, e.Total, quiz.Percentage(e.Correct, e.Total))
		}
		return nil
	},
}

func printTally(label string, t progress.Tally) {
	fmt.Printf("%-16s  %8d  %8d  %5d%%\n", label, t.Answered, t.Correct, t.Percentage())
}

func init() {
	statsCmd.Flags().IntP("limit", "n", 10, "Number of recent attempts to show")
}
