package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/progress"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Inspect or reset study progress",
}

var progressShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved study progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		log := stderrLogger()
		kv := s.KVRepo()
		ps := progress.Open(ctx, kv, progress.WithLogger(log))
		doc := content.NewLoader("", kv, content.WithLogger(log)).Load(ctx)
		st := ps.Snapshot()

		fmt.Printf("Mode:      %s\n", st.StudyMode)
		fmt.Printf("Tab:       %s\n", st.ActiveTab)
		if u, ok := ps.CurrentUnit(doc); ok {
			fmt.Printf("Unit:      %d/%d %s\n", st.CurrentUnitIndex+1, len(doc), u.Title)
		} else {
			fmt.Printf("Unit:      %d (no content)\n", st.CurrentUnitIndex+1)
		}
		fmt.Printf("Expanded:  %d sections\n", countTrue(st.ExpandedSections))
		fmt.Printf("Quizzes:   %d section, %d unit\n", len(st.QuizResponses), len(st.UnitQuizResponses))

		fmt.Println()
		fmt.Println("Completed units")
		fmt.Println(strings.Repeat("─", 60))
		if len(st.CompletedUnits) == 0 {
			fmt.Println("(none)")
			return nil
		}
		completed := slices.Clone(st.CompletedUnits)
		slices.Sort(completed)
		for _, i := range completed {
			title := "?"
			if i >= 0 && i < len(doc) {
				title = doc[i].Title
			}
			fmt.Printf("%3d  %s\n", i+1, title)
		}
		return nil
	},
}

var progressResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase study progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		withChat, _ := cmd.Flags().GetBool("chat")

		if !yes && !confirm(os.Stdin, "Erase all study progress? [y/N] ") {
			fmt.Println("Aborted.")
			return nil
		}

		s, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := context.Background()
		log := stderrLogger()
		kv := s.KVRepo()
		if err := progress.Open(ctx, kv, progress.WithLogger(log)).ResetProgress(ctx); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
		if withChat {
			if err := chat.LoadTranscript(ctx, kv, chat.WithTranscriptLogger(log)).Reset(ctx); err != nil {
				return fmt.Errorf("reset chat: %w", err)
			}
		}

		fmt.Println("Progress erased.")
		return nil
	},
}

func confirm(r io.Reader, prompt string) bool {
	fmt.Print(prompt)
	line, _ := bufio.NewReader(r).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func countTrue(m map[progress.Key]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// stderrLogger reports warnings from maintenance commands.
func stderrLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return log
}

func init() {
	progressResetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	progressResetCmd.Flags().Bool("chat", false, "Also clear the chat transcript")

	progressCmd.AddCommand(progressShowCmd)
	progressCmd.AddCommand(progressResetCmd)
}
