package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"bananaslides/internal/domain"
)

func parseDuration(flag, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", flag, err)
	}
	return d, nil
}

func parseTaskID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}

// parsePages turns "page_id=image_key" arguments into page refs, keeping order.
func parsePages(args []string) ([]domain.PageRef, error) {
	pages := make([]domain.PageRef, 0, len(args))
	for i, a := range args {
		pageID, key, ok := strings.Cut(a, "=")
		if !ok {
			// A bare key gets a positional id.
			pageID, key = fmt.Sprintf("page-%d", i+1), a
		}
		if pageID == "" || key == "" {
			return nil, fmt.Errorf("invalid page %q, want page_id=image_key", a)
		}
		pages = append(pages, domain.PageRef{PageID: pageID, ImageKey: key})
	}
	return pages, nil
}

// parseEraseSets turns "page_id=t1,t2" arguments into per-page erase lists.
// "page_id=" marks every element of the page keep.
func parseEraseSets(args []string) (map[string][]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	sets := make(map[string][]string, len(args))
	for _, a := range args {
		pageID, ids, ok := strings.Cut(a, "=")
		if !ok || pageID == "" {
			return nil, fmt.Errorf("invalid erase set %q, want page_id=id1,id2", a)
		}
		list := []string{}
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				list = append(list, id)
			}
		}
		sets[pageID] = list
	}
	return sets, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTask(t *domain.ConversionTask) {
	fmt.Printf("Task:     %s\n", t.ID)
	fmt.Printf("Status:   %s\n", t.Status)
	p := t.Progress
	fmt.Printf("Progress: %d/%d extracted, %d/%d completed, %d failed\n", p.Extracted, p.Total, p.Completed, p.Total, p.Failed)
	for _, pg := range p.Pages {
		mark := ""
		if pg.Failed {
			mark = " (failed)"
		}
		fmt.Printf("  %d. %-20s %s%s\n", pg.Index, pg.PageID, pg.Stage, mark)
	}
	if p.WarningCount > 0 {
		fmt.Printf("Warnings: %d\n", p.WarningCount)
		for _, w := range p.Warnings {
			fmt.Printf("  %s %s: %s\n", w.PageID, w.Stage, w.Message)
		}
	}
	if t.ResultArtifactRef != "" {
		fmt.Printf("Artifact: %s\n", t.ResultArtifactRef)
	}
	if e := t.Error; e != nil {
		fmt.Printf("Error:    %s at %s", e.Code, e.Stage)
		if e.Page > 0 {
			fmt.Printf(" on page %d (%s)", e.Page, e.PageID)
		}
		fmt.Printf(": %s\n", e.Cause)
	}
}

// taskBar tracks extraction and rendering as two units of work per page.
type taskBar struct {
	bar *progressbar.ProgressBar
}

func newTaskBar() *taskBar {
	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("PENDING"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &taskBar{bar: bar}
}

func (b *taskBar) Update(t *domain.ConversionTask) {
	if total := t.Progress.Total * 2; total > 0 && b.bar.GetMax() != total {
		b.bar.ChangeMax(total)
	}
	b.bar.Describe(string(t.Status))
	_ = b.bar.Set(t.Progress.Extracted + t.Progress.Completed)
}

func (b *taskBar) Finish() {
	_ = b.bar.Finish()
}
