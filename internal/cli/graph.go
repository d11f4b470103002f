package cli

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/wjkennedy/cjm/internal/layout"
	"github.com/wjkennedy/cjm/internal/query"
)

// GraphOptions holds flags for the graph command.
type GraphOptions struct {
	*RootOptions
	Version    string
	Seed       int64
	Iterations int
	Plotly     bool
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GraphOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "graph <customer-id>",
		Short: "Render a customer's hand-off graph as JSON",
		Long: `Build the hand-off graph of one customer journey, lay it out and print it.

The default output is {nodes, edges} with coordinates. --plotly prints a
Plotly figure instead. Output is JSON in both formats; --format json wraps
it in the usual status envelope.

Example:
  cjm graph C1 --version 1.0 --seed 42
  cjm graph C1 --plotly > figure.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Version, "version", "", "snapshot version (default: server.default_version)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "layout seed (default: layout.seed, else random)")
	cmd.Flags().IntVar(&opts.Iterations, "iterations", 0, "layout iteration cap (default: layout.iterations)")
	cmd.Flags().BoolVar(&opts.Plotly, "plotly", false, "print a Plotly figure")

	return cmd
}

func runGraph(opts *GraphOptions, customerID string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, st, err := opts.openStore(f)
	if err != nil {
		return err
	}
	defer closeStore(st)

	version := opts.Version
	if version == "" {
		version = cfg.Server.DefaultVersion
	}
	layoutOpts := cfg.LayoutOptions()
	if cmd.Flags().Changed("seed") {
		layoutOpts = append(layoutOpts, layout.WithSeed(opts.Seed))
	}
	if opts.Iterations > 0 {
		layoutOpts = append(layoutOpts, layout.WithIterations(opts.Iterations))
	}

	svc := query.New(st, nil)
	var out any
	if opts.Plotly {
		out, err = svc.Figure(cmd.Context(), customerID, version, layout.DefaultTitle, layoutOpts...)
	} else {
		out, err = svc.Map(cmd.Context(), customerID, version, layoutOpts...)
	}
	if err != nil {
		return f.Fail("graph "+customerID, err)
	}

	return f.Emit(out, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	})
}
