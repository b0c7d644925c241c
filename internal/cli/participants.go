package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// ParticipantsCmd manages the identity store.
func ParticipantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Manage standup participants",
	}
	cmd.AddCommand(participantsListCmd())
	cmd.AddCommand(participantsRegisterCmd())
	return cmd
}

func participantsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			activeOnly, _ := cmd.Flags().GetBool("active")
			participants, err := s.svc.ListParticipants(cmd.Context(), activeOnly)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(participants) == 0 {
				fmt.Fprintln(out, "No participants found")
				return nil
			}
			dir := s.svc.Directory()
			fmt.Fprintf(out, "\n%-16s %-12s %-8s %s\n", "ID", "ROLE", "ASKED", "ENDPOINT")
			fmt.Fprintln(out, "────────────────────────────────────────────────────────────────")
			for _, p := range participants {
				asked := color.New(color.FgGreen).Sprint("yes")
				if !dir.Eligible(p) {
					asked = color.New(color.FgYellow).Sprint("no ")
				}
				fmt.Fprintf(out, "%-16s %-12s %-8s %s\n", p.ParticipantID, p.Role, asked, p.Endpoint)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().Bool("active", false, "only list active participants")
	return cmd
}

func participantsRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [participant-id]",
		Short: "Register or update a participant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			name, _ := cmd.Flags().GetString("name")
			role, _ := cmd.Flags().GetString("role")
			endpoint, _ := cmd.Flags().GetString("endpoint")
			identity, _ := cmd.Flags().GetString("identity")
			inactive, _ := cmd.Flags().GetBool("inactive")
			active := !inactive

			p, err := s.svc.RegisterParticipant(cmd.Context(), domain.RegisterParticipantRequest{
				ParticipantID: args[0],
				Name:          name,
				Role:          role,
				Endpoint:      endpoint,
				IdentityRef:   identity,
				Active:        &active,
			})
			if err != nil {
				return fmt.Errorf("failed to register participant: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %s (%s)\n", p.ParticipantID, p.Role)
			return nil
		},
	}
	cmd.Flags().String("name", "", "display name (default the id)")
	cmd.Flags().String("role", "", "role, one of the configured roles")
	cmd.Flags().String("endpoint", "", "agent base URL")
	cmd.Flags().String("identity", "", "external identity reference")
	cmd.Flags().Bool("inactive", false, "register as inactive")
	return cmd
}
