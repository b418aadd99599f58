package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Manage the connection request queue",
		Long: `Queue leads for connection requests. A running "prospector serve" sends
them under the configured daily limit and business hours.`,
	}
	cmd.AddCommand(newEnqueueCmd(), newRetryCmd(), newQueueCmd(), newConnectStatusCmd())
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "enqueue LEAD_ID...",
		Short: "Queue connection requests for leads",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			added, err := a.Store.Enqueue(cmd.Context(), ids, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d of %d leads\n", added, len(ids))
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "invitation note")
	return cmd
}

func newRetryCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "retry LEAD_ID",
		Short: "Re-queue a lead whose request failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			added, err := a.Store.Enqueue(cmd.Context(), ids, note)
			if err != nil {
				return err
			}
			if added == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Lead %d was not re-queued (missing, no profile URL, pending or already sent)\n", ids[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lead %d re-queued\n", ids[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "invitation note")
	return cmd
}

func newQueueCmd() *cobra.Command {
	var (
		status  string
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued connection requests",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			var st store.QueueStatus
			switch status {
			case "", "all":
			case string(store.QueuePending), string(store.QueueSent), string(store.QueueFailed):
				st = store.QueueStatus(status)
			default:
				return fmt.Errorf("unknown queue status %q", status)
			}
			items, err := a.Store.QueueList(cmd.Context(), st, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), items)
			}
			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.LeadID, 10),
					item.FullName,
					string(item.Status),
					formatTime(item.SentAt),
					orDash(item.Error),
				})
			}
			return table(cmd.OutOrStdout(), []string{"LEAD", "NAME", "STATUS", "SENT", "ERROR"}, rows)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "pending, sent or failed")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultQueueLimit, "rows to show")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newConnectStatusCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show scheduler settings, today's sends and queue depth",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			st, err := a.Worker.Status(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), st)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sent today:     %d / %d\n", st.SendsToday, st.Settings.DailyLimit)
			fmt.Fprintf(out, "Delay:          %d-%ds\n", st.Settings.MinDelaySeconds, st.Settings.MaxDelaySeconds)
			if st.Settings.BusinessHoursOnly {
				fmt.Fprintf(out, "Business hours: %s-%s\n", st.BusinessStart, st.BusinessEnd)
			} else {
				fmt.Fprintln(out, "Business hours: off")
			}
			fmt.Fprintf(out, "Queue:          %d pending, %d sent, %d failed\n", st.Queue.Pending, st.Queue.Sent, st.Queue.Failed)
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}
