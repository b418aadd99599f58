package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
	"github.com/JakeFAU/linkedin-prospector/internal/runs"
)

func newSearchCmd() *cobra.Command {
	var (
		source  string
		req     lead.SearchRequest
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "search [keywords...]",
		Short: "Crawl a people search and save the leads",
		Long: `Builds a search URL from the flags, crawls up to --max-pages result pages
through the shared browser profile and upserts every lead found.`,
		Example: `  prospector search "data engineer" --location "Austin" --max-pages 3
  prospector search --source sales_navigator cfo --title "Chief Financial Officer"
  prospector search --source company_employees --company acme`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := lead.ParseSource(source)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				req.Keywords = strings.Join(args, " ")
			}
			plan, err := runs.PlanSearch(kind, req)
			if err != nil {
				return err
			}
			return executePlan(cmd, plan, jsonOut)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&source, "source", string(lead.SourceSearch), "linkedin_search, sales_navigator or company_employees")
	flags.StringVar(&req.Title, "title", "", "title filter")
	flags.StringVar(&req.Location, "location", "", "location filter")
	flags.StringVar(&req.Industry, "industry", "", "industry filter (sales_navigator only)")
	flags.StringVar(&req.Company, "company", "", "company name or slug")
	flags.IntVar(&req.MaxPages, "max-pages", lead.DefaultPages, "result pages to crawl")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func newScrapeURLCmd() *cobra.Command {
	var (
		maxPages int
		jsonOut  bool
	)
	cmd := &cobra.Command{
		Use:   "scrape-url URL",
		Short: "Crawl a pasted LinkedIn result URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := runs.PlanURL(args[0], maxPages)
			if err != nil {
				return err
			}
			return executePlan(cmd, plan, jsonOut)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", lead.DefaultPages, "result pages to crawl")
	addJSONFlag(cmd, &jsonOut)
	return cmd
}

func executePlan(cmd *cobra.Command, plan runs.Plan, jsonOut bool) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !jsonOut {
		fmt.Fprintf(out, "Crawling %s (up to %d pages)\n", plan.Label, plan.MaxPages)
	}
	snap, runErr := a.Runs.Execute(cmd.Context(), plan)
	if jsonOut {
		if err := printJSON(out, snap); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil {
		if snap.RunID == 0 {
			return runErr
		}
		return fmt.Errorf("run %d failed: %w", snap.RunID, runErr)
	}
	fmt.Fprintf(out, "Run %d %s: %d leads from %d pages (stopped: %s)\n",
		snap.RunID, snap.Status, snap.Found, snap.Page, snap.Stop)
	if snap.Error != "" {
		fmt.Fprintf(out, "Warning: %s\n", snap.Error)
	}
	return nil
}
