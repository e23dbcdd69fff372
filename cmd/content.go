package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/studylm/internal/content"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Inspect study content",
}

var contentCheckCmd = &cobra.Command{
	Use:   "check [file|url]",
	Short: "Validate study content and list questions that cannot be answered correctly",
	Long: "Validate a study document. With no argument the cached copy in the database is checked.\n" +
		"Questions whose correct answer matches none of their choices are listed.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var doc content.Document
		source := "cache"
		if len(args) == 1 {
			source = args[0]
			d, err := content.ReadFile(source)
			if err != nil && strings.Contains(source, "://") {
				d = content.NewLoader(source, nil, content.WithLogger(stderrLogger())).Load(ctx)
				if d == nil {
					return fmt.Errorf("no valid study content at %s", source)
				}
				err = nil
			}
			if err != nil {
				return err
			}
			doc = d
		} else {
			s, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			doc = content.NewLoader("", s.KVRepo(), content.WithLogger(stderrLogger())).Load(ctx)
			if doc == nil {
				return fmt.Errorf("no cached study content")
			}
		}

		sections := 0
		for _, u := range doc {
			sections += len(u.Sections)
		}
		fmt.Printf("Source:    %s\n", source)
		fmt.Printf("Units:     %d\n", len(doc))
		fmt.Printf("Sections:  %d\n", sections)
		fmt.Printf("Questions: %d\n", doc.QuestionCount())

		issues := content.Check(doc)
		if len(issues) == 0 {
			fmt.Println("\nEvery question has a matching correct answer.")
			return nil
		}

		fmt.Println()
		fmt.Println("Questions with no matching choice")
		fmt.Println(strings.Repeat("─", 60))
		for _, issue := range issues {
			fmt.Println(issue.String())
		}
		return fmt.Errorf("%d question(s) can never be answered correctly", len(issues))
	},
}

func init() {
	contentCmd.AddCommand(contentCheckCmd)
}
