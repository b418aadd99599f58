package cmd

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/enrich"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Browse and prune the lead database",
	}
	cmd.AddCommand(newLeadsListCmd(), newLeadsStatsCmd(), newLeadsEnrichCmd(), newLeadsDeleteCmd(), newLeadsClearCmd())
	return cmd
}

func newLeadsListCmd() *cobra.Command {
	var (
		source  string
		filter  store.LeadFilter
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if source != "" {
				if filter.Source, err = lead.ParseSource(source); err != nil {
					return err
				}
			}
			leads, err := a.Store.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}
			total, err := a.Store.Count(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{"leads": leads, "total": total})
			}
			rows := make([][]string, 0, len(leads))
			for _, l := range leads {
				rows = append(rows, []string{
					strconv.FormatInt(l.ID, 10),
					l.FullName,
					orDash(l.CurrentTitle),
					orDash(l.CurrentCompany),
					orDash(l.Location),
					orDash(l.ProfileURL),
				})
			}
			if err := table(cmd.OutOrStdout(), []string{"ID", "NAME", "TITLE", "COMPANY", "LOCATION", "URL"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d leads\n", len(leads), total)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&source, "source", "", "linkedin_search, sales_navigator or company_employees")
	flags.StringVar(&filter.Company, "company", "", "company substring")
	flags.StringVar(&filter.Search, "search", "", "match name, headline or title")
	flags.IntVar(&filter.Limit, "limit", store.DefaultLeadLimit, "rows to show")
	flags.IntVar(&filter.Offset, "offset", 0, "rows to skip")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newLeadsStatsCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the lead database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.Store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total leads:  %d\n", stats.Total)
			sources := make([]string, 0, len(stats.BySource))
			for src := range stats.BySource {
				sources = append(sources, string(src))
			}
			sort.Strings(sources)
			for _, src := range sources {
				fmt.Fprintf(out, "  %-18s %d\n", src, stats.BySource[lead.Source(src)])
			}
			fmt.Fprintf(out, "Last scraped: %s\n", formatTime(stats.LastScraped))
			return nil
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newLeadsEnrichCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "enrich LEAD_ID...",
		Short: "Read the profile pages of stored leads",
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
			targets := make([]enrich.Target, 0, len(ids))
			for _, id := range ids {
				l, err := a.Store.GetLead(cmd.Context(), id)
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("lead %d not found", id)
				}
				if err != nil {
					return err
				}
				targets = append(targets, enrich.TargetFor(l))
			}

			res, err := a.Enricher.Batch(cmd.Context(), a.Store, targets, a.Config.Paths().Enrichments)
			if jsonOut && err == nil {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			for _, p := range res.Profiles {
				fmt.Fprintf(out, "Lead %d: %s\n", p.LeadID, orDash(lead.StringPtr(p.ProfileURL)))
				if p.Summary.Name != "" {
					fmt.Fprintf(out, "  %s | %s | %s\n", p.Summary.Name, orDash(lead.StringPtr(p.Summary.Headline)), orDash(lead.StringPtr(p.Summary.Location)))
				}
				fmt.Fprintf(out, "  experience %d, education %d, skills %d, posts %d\n",
					len(p.Experience), len(p.Education), len(p.Skills), len(p.RecentPosts)+len(p.ActivityPosts))
				for _, e := range p.Errors {
					fmt.Fprintf(out, "  Warning: %s\n", e)
				}
			}
			fmt.Fprintf(out, "Run %d: enriched %d of %d leads\n", res.RunID, res.Enriched, len(targets))
			if res.OutputPath != "" {
				fmt.Fprintf(out, "Saved %s\n", res.OutputPath)
			}
			return err
		},
	}
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newLeadsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete LEAD_ID...",
		Short: "Delete leads and their queue rows",
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
			res, err := a.Store.DeleteLeads(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d leads and %d queue rows\n", res.LeadsDeleted, res.QueueDeleted)
			return nil
		},
	}
}

func newLeadsClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every lead and queue row",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.Store.ClearLeads(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d leads and %d queue rows\n", res.LeadsDeleted, res.QueueDeleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm")
	return cmd
}
