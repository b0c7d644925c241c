package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ReconcileCmd marks runs abandoned by a crashed process.
func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Mark runs left running by a crashed process as abandoned",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.svc.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to reconcile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Marked %d run(s) as abandoned\n", n)
			return nil
		},
	}
}
