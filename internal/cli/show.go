package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ShowCmd prints a stored run, or the recent runs with --list.
func ShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored standup",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if list, _ := cmd.Flags().GetBool("list"); list {
				limit, _ := cmd.Flags().GetInt("limit")
				runs, err := s.svc.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No standups found")
					return nil
				}
				fmt.Fprintf(out, "\n%-12s %-10s %s\n", "DATE", "STATUS", "TITLE")
				fmt.Fprintln(out, "────────────────────────────────────────────────")
				for _, r := range runs {
					fmt.Fprintf(out, "%-12s %-10s %s\n", r.Date, r.Status, r.Title)
				}
				fmt.Fprintln(out)
				return nil
			}

			rawDate, _ := cmd.Flags().GetString("date")
			date, err := s.svc.ResolveDate(rawDate, "")
			if err != nil {
				return err
			}
			run, err := s.svc.GetRun(cmd.Context(), date)
			if err != nil {
				return err
			}
			entries, err := s.svc.GetEntries(cmd.Context(), date)
			if err != nil {
				return err
			}
			printRun(out, run)
			printEntries(out, entries)

			if showMessages, _ := cmd.Flags().GetBool("messages"); showMessages {
				messages, err := s.svc.GetMessages(cmd.Context(), date)
				if err != nil {
					return err
				}
				printMessages(out, messages)
			}
			return nil
		},
	}
	cmd.Flags().String("date", "today", "standup date (YYYY-MM-DD or today)")
	cmd.Flags().Bool("messages", false, "also print the transcript")
	cmd.Flags().Bool("list", false, "list recent standups instead")
	cmd.Flags().Int("limit", 30, "number of standups to list")
	return cmd
}
