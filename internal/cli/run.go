package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

// RunCmd runs one standup and prints its outcome.
func RunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the standup for a date",
		Long: `Run the standup for a date end to end. Re-running a date replaces
its entries and transcript.

Examples:
  standup run                       # today in STANDUP_TIMEZONE
  standup run --date 2026-03-01
  standup run --title "Release sync"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			rawDate, _ := cmd.Flags().GetString("date")
			title, _ := cmd.Flags().GetString("title")
			timezone, _ := cmd.Flags().GetString("timezone")
			date, err := s.svc.ResolveDate(rawDate, timezone)
			if err != nil {
				return err
			}

			result, err := s.svc.StartRun(cmd.Context(), domain.RunRequest{
				Date:     date,
				Title:    title,
				Timezone: timezone,
			})
			if err != nil {
				return fmt.Errorf("standup %s failed: %w", date, err)
			}

			out := cmd.OutOrStdout()
			printRun(out, result.Run)
			fmt.Fprintf(out, "Entries:  %d\n", result.Entries)
			fmt.Fprintf(out, "Result:   %s\n", resultLabel(result.Result))
			return nil
		},
	}
	cmd.Flags().String("date", "today", "standup date (YYYY-MM-DD or today)")
	cmd.Flags().String("title", "", "run title (default STANDUP_TITLE)")
	cmd.Flags().String("timezone", "", "IANA timezone for the run and for resolving today (default STANDUP_TIMEZONE)")
	return cmd
}
