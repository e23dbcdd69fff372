package cmd

import (
	"fmt"

	"github.com/abhisek/studylm/internal/progress"
	"github.com/abhisek/studylm/internal/store"
	"github.com/spf13/cobra"
)

// defaultAPI is where the study client expects the proxy.
const defaultAPI = "http://localhost:5001"

var rootCmd = &cobra.Command{
	Use:   "studylm",
	Short: "Turn course files into a terminal study guide",
	Long:  "StudyLM turns uploaded course files into units, sections and quizzes, and lets you study them with an AI assistant in the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Open the study client",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides STUDYLM_DB env var)")

	for _, c := range []*cobra.Command{rootCmd, studyCmd} {
		c.Flags().String("mode", "", "Start in this mode: welcome or learning")
		c.Flags().String("content", "", "Study content file or URL (default <api>/study_concepts.json)")
		c.Flags().String("api", defaultAPI, "Base URL of the studylm proxy")
	}

	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then STUDYLM_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the database selected by the --db flag.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// parseMode validates the --mode flag. An empty value means no override.
func parseMode(s string) (progress.Mode, error) {
	switch m := progress.Mode(s); m {
	case "", progress.ModeWelcome, progress.ModeLearning:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want welcome or learning)", s)
	}
}
