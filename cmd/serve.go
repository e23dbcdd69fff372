package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/studylm/internal/chat"
	"github.com/abhisek/studylm/internal/config"
	"github.com/abhisek/studylm/internal/content"
	"github.com/abhisek/studylm/internal/llm"
	"github.com/abhisek/studylm/internal/server"
	"github.com/abhisek/studylm/internal/studyguide"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the upload and chat proxy",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("port") {
			cfg.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("reply-timeout") {
			cfg.ReplyTimeout, _ = cmd.Flags().GetDuration("reply-timeout")
		}
		log, err := config.SetupLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		provider, llmCfg, err := llm.NewProviderFromEnv(ctx, st.EventRepo(), log)
		if errors.Is(err, llm.ErrNotConfigured) {
			fmt.Fprintln(os.Stderr, "LLM provider not configured:", err)
			return err
		}
		if err != nil {
			return fmt.Errorf("create LLM provider: %w", err)
		}
		log.WithField("provider", llmCfg.Provider).Info("LLM provider ready")

		shared := cfg.SharedFile(content.FileName)
		gen := studyguide.NewGenerator(provider,
			studyguide.WithPublishPath(shared),
			studyguide.WithTimeout(llmCfg.Timeout),
			studyguide.WithLogger(log),
		)
		replier := chat.NewService(provider,
			chat.WithDocument(func(ctx context.Context) content.Document {
				doc, err := content.ReadFile(shared)
				if err != nil {
					return nil
				}
				return doc
			}),
			chat.WithReplyTimeout(cfg.ReplyTimeout),
			chat.WithServiceLogger(log),
		)

		ln, err := server.Listen(ctx, cfg.Port, log)
		if err != nil {
			return err
		}
		return server.New(cfg, gen, replier, log).Serve(ctx, ln)
	},
}

func init() {
	serveCmd.Flags().Int("port", 5001, "Port to listen on (overrides PORT env var)")
	serveCmd.Flags().Duration("reply-timeout", 2*time.Minute, "Longest a chat reply may stream, 0 for no limit (overrides STUDYLM_REPLY_TIMEOUT)")
}
