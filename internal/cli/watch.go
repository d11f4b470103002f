package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wjkennedy/cjm/internal/ingest"
	"github.com/wjkennedy/cjm/internal/watch"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest batch files dropped into a directory",
		Long: `Watch a directory and ingest every .json, .yaml or .yml file written
into it. Rejected files are logged and skipped. Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			_, st, err := rootOpts.openStore(f)
			if err != nil {
				return err
			}
			defer closeStore(st)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			logger := slog.Default()
			w := watch.New(args[0], ingest.New(st, nil, logger), watch.Options{Logger: logger})
			if err := w.Run(ctx); err != nil {
				return f.Fail("watch "+args[0], err)
			}
			return nil
		},
	}
}
