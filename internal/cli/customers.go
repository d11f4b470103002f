package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wjkennedy/cjm/internal/query"
)

// NewCustomersCommand creates the customers command.
func NewCustomersCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "customers",
		Short: "List customers that have journey steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			_, st, err := rootOpts.openStore(f)
			if err != nil {
				return err
			}
			defer closeStore(st)

			ids, err := query.New(st, nil).Customers(cmd.Context())
			if err != nil {
				return f.Fail("list customers", err)
			}
			return f.Emit(ids, func(w io.Writer) error {
				for _, id := range ids {
					if _, err := fmt.Fprintln(w, id); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
