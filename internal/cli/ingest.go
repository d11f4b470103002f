package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wjkennedy/cjm/internal/ingest"
)

// FileResult is the outcome of ingesting one batch file.
type FileResult struct {
	File string `json:"file"`
	ingest.Result
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest journey batch files",
		Long: `Decode and ingest JSON or YAML journey batches.

Files are processed in order. The first rejected file stops the command;
files before it stay ingested.

Example:
  cjm ingest --db cjm.db batch-2024-01.json batch-2024-02.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, args, cmd)
		},
	}
}

func runIngest(opts *RootOptions, files []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	_, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st)

	pipeline := ingest.New(st, nil, slog.Default())
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		f.VerboseLog("ingesting %s", file)
		batch, err := ingest.DecodeFile(file)
		if err != nil {
			return f.Fail("ingest "+file, err)
		}
		res, err := pipeline.Ingest(cmd.Context(), batch)
		if err != nil {
			return f.Fail("ingest "+file, err)
		}
		results = append(results, FileResult{File: file, Result: res})
	}

	return f.Emit(results, func(w io.Writer) error {
		for _, r := range results {
			if _, err := fmt.Fprintf(w, "%s: version %s, %d customers, %d steps (run %s)\n",
				r.File, r.Version, r.Customers, r.Steps, r.RunID); err != nil {
				return err
			}
		}
		return nil
	})
}
