package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/resolvd/resolvd/pkg/logger"
)

// Execute runs the resolvd CLI. SIGINT/SIGTERM cancel the command context so
// an in-flight run unwinds through its pending retrieval and approval calls.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "resolvd",
		Short:         "Ticket resolution engine with hybrid retrieval and human approval",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().Bool("log-json", false, "emit JSON logs")
	root.PersistentFlags().Bool("log-source", false, "include caller information in logs")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// A missing .env file is fine; explicit environment wins either way.
		_ = godotenv.Load()
		level, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
		if err != nil {
			return err
		}
		log := logger.SetupLogger(level, logJSON, logSource)
		cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))
		return nil
	}
	root.AddCommand(newProcessCmd())
	return root.ExecuteContext(ctx)
}
