package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wjkennedy/cjm/internal/journey"
	"github.com/wjkennedy/cjm/internal/query"
)

// JourneyOptions holds flags for the journey command.
type JourneyOptions struct {
	*RootOptions
	Version string
}

// NewJourneyCommand creates the journey command.
func NewJourneyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JourneyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journey <customer-id>",
		Short: "Show a customer's steps in time order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJourney(opts, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Version, "version", "", "snapshot version (default: server.default_version)")

	return cmd
}

func runJourney(opts *JourneyOptions, customerID string, cmd *cobra.Command) error {
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

	steps, err := query.New(st, nil).Journey(cmd.Context(), customerID, version)
	if err != nil {
		return f.Fail("journey "+customerID, err)
	}
	return f.Emit(steps, func(w io.Writer) error {
		return writeSteps(w, steps)
	})
}

func writeSteps(w io.Writer, steps []journey.Step) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tSTEP\tNAME\tCONTACT\tLEAD TIME\tHANDOFF")
	for _, s := range steps {
		lead, handoff := "-", "-"
		if s.LeadTime != nil {
			lead = strconv.FormatFloat(*s.LeadTime, 'g', -1, 64)
		}
		if s.HasHandoff() {
			handoff = *s.HandoffTo
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Timestamp.Format("2006-01-02T15:04:05Z07:00"), s.ID, s.Name, s.ContactMethod, lead, handoff)
	}
	return tw.Flush()
}
