package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect crawl run history",
	}
	cmd.AddCommand(newRunsListCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		status  string
		filter  store.RunFilter
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			switch status {
			case "":
			case string(store.RunRunning), string(store.RunCompleted), string(store.RunFailed):
				filter.Status = store.RunStatus(status)
			default:
				return fmt.Errorf("unknown run status %q", status)
			}
			runs, err := a.Store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					strconv.FormatInt(run.ID, 10),
					run.RunType,
					string(run.Status),
					strconv.Itoa(run.LeadsFound),
					formatTime(&run.StartedAt),
					orDash(run.QueryText),
					orDash(run.Error),
				})
			}
			return table(cmd.OutOrStdout(), []string{"ID", "TYPE", "STATUS", "LEADS", "STARTED", "QUERY", "ERROR"}, rows)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&status, "status", "", "running, completed or failed")
	flags.StringVar(&filter.RunType, "type", "", "api_search or api_scrape_url")
	flags.IntVar(&filter.Limit, "limit", store.DefaultRunLimit, "rows to show")
	flags.IntVar(&filter.Offset, "offset", 0, "rows to skip")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}
