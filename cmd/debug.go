package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/linkedin-prospector/internal/crawler"
	"github.com/JakeFAU/linkedin-prospector/internal/extract"
	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

func newDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Inspect saved result page snapshots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "html [PAGE]",
			Short: "Summarize the saved HTML of a result page",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runDebugHTML,
		},
		&cobra.Command{
			Use:   "parse [PAGE]",
			Short: "Re-run the keyword search extractor on a saved page",
			Args:  cobra.MaximumNArgs(1),
			RunE:  runDebugParse,
		},
	)
	return cmd
}

// loadSnapshot reads debug_html/page_N.html. found is false when no snapshot
// exists yet.
func loadSnapshot(cmd *cobra.Command, args []string) (path string, body []byte, found bool, err error) {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return "", nil, false, err
	}
	page := 1
	if len(args) == 1 {
		page, err = strconv.Atoi(args[0])
		if err != nil || page < 1 {
			return "", nil, false, fmt.Errorf("invalid page %q", args[0])
		}
	}
	path = a.Snapshots.Path(crawler.PageSnapshotName(page))
	body, err = os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No debug HTML at %s. Run a search first.\n", path)
		return path, nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return path, body, true, nil
}

func runDebugHTML(cmd *cobra.Command, args []string) error {
	path, body, found, err := loadSnapshot(cmd, args)
	if err != nil || !found {
		return err
	}
	info, err := extract.Inspect(body)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "File: %s\n", path)
	fmt.Fprintf(out, "Size: %d bytes\n", info.Bytes)
	fmt.Fprintf(out, "Result cards:   %d\n", info.Cards)
	fmt.Fprintf(out, "Profile links:  %d\n", info.ProfileLinks)
	fmt.Fprintf(out, "Title elements: %d\n", info.TitleElements)
	for i, texts := range info.CardTexts {
		name := "?"
		if len(texts) > 0 {
			name = texts[0]
		}
		fmt.Fprintf(out, "\n  Card %d: %s\n    Text: %q\n", i+1, name, texts)
	}
	return nil
}

func runDebugParse(cmd *cobra.Command, args []string) error {
	path, body, found, err := loadSnapshot(cmd, args)
	if err != nil || !found {
		return err
	}
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	page := crawler.Page{URL: crawler.SearchBaseURL, StatusCode: 200, Body: body}
	leads, err := a.Extractor.Extract(page, crawler.Binding{Kind: lead.SourceSearch, Query: "debug"})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Parsed %d leads from %s:\n", len(leads), path)
	for i, l := range leads {
		fmt.Fprintf(out, "\n  %d. %s\n", i+1, l.FullName)
		fmt.Fprintf(out, "     URL:      %s\n", orDash(l.ProfileURL))
		fmt.Fprintf(out, "     Title:    %s\n", orDash(l.CurrentTitle))
		fmt.Fprintf(out, "     Company:  %s\n", orDash(l.CurrentCompany))
		fmt.Fprintf(out, "     Location: %s\n", orDash(l.Location))
		fmt.Fprintf(out, "     Degree:   %s\n", orDash(l.ConnectionDegree))
		if l.MutualConnections != nil {
			fmt.Fprintf(out, "     Mutual:   %d\n", *l.MutualConnections)
		}
	}
	return nil
}
