package views

import (
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/nexushq/nexus/internal/api"
)

// DraftList is the main draft queue view (K9s-inspired table).
type DraftList struct {
	*tview.Table
	drafts     []api.Draft
	selectedFn func() (int, int)
}

// NewDraftList creates a new draft list table.
func NewDraftList() *DraftList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Drafts ")

	dl := &DraftList{Table: table}
	dl.selectedFn = table.GetSelection
	return dl
}

// Update refreshes the draft list with new data.
func (dl *DraftList) Update(drafts []api.Draft) {
	dl.drafts = drafts
	dl.Clear()

	for col, h := range []string{" Status", " Platform", " Content", " Scheduled"} {
		dl.SetCell(0, col, tview.NewTableCell(h).SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	}

	for i, d := range drafts {
		row := i + 1
		dl.SetCell(row, 0, tview.NewTableCell(" "+statusBadge(d.Status)).SetMaxWidth(12))
		dl.SetCell(row, 1, tview.NewTableCell(" "+d.Platform).SetMaxWidth(10))
		dl.SetCell(row, 2, tview.NewTableCell(" "+snippet(d.Content, 60)).SetMaxWidth(60).SetExpansion(2))
		dl.SetCell(row, 3, tview.NewTableCell(" "+formatSchedule(d.ScheduledFor)).SetMaxWidth(14))
	}
}

// SelectedDraft returns the id of the currently selected draft, or 0.
func (dl *DraftList) SelectedDraft() int64 {
	row, _ := dl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(dl.drafts) {
		return dl.drafts[idx].ID
	}
	return 0
}

func statusBadge(status string) string {
	switch status {
	case api.DraftPending:
		return "[yellow]pending[-]"
	case api.DraftApproved:
		return "[green]approved[-]"
	case api.DraftScheduled:
		return "[green]scheduled[-]"
	case api.DraftPublished:
		return "[blue]published[-]"
	case api.DraftRejected:
		return "[red]rejected[-]"
	default:
		return status
	}
}

func snippet(content string, max int) string {
	s := []rune(sanitizeForTerminal(strings.ReplaceAll(content, "\n", " ")))
	if len(s) > max {
		return string(s[:max-1]) + "…"
	}
	return string(s)
}

func formatSchedule(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format("01/02 15:04")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	local := t.Local()
	if local.Year() == now.Year() && local.YearDay() == now.YearDay() {
		return local.Format("15:04")
	}
	return local.Format("01/02")
}
