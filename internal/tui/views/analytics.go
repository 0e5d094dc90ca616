package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/nexushq/nexus/internal/api"
)

// AnalyticsView renders the analytics snapshot and recommendations.
type AnalyticsView struct {
	*tview.TextView
}

// NewAnalyticsView creates a new analytics view.
func NewAnalyticsView() *AnalyticsView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true).SetTitle(" Analytics ")

	return &AnalyticsView{TextView: tv}
}

// Update refreshes the view with a snapshot and recommendations.
// A nil snapshot renders a placeholder.
func (av *AnalyticsView) Update(data *api.AnalyticsData, recs []api.Recommendation) {
	av.Clear()

	if data == nil {
		_, _ = fmt.Fprint(av, "\n  [::d]No analytics loaded. Press g to fetch.[-:-:-]\n")
		return
	}

	_, _ = fmt.Fprintf(av, "\n  [::b]Last %s[-:-:-]\n\n", data.TimeRange)
	_, _ = fmt.Fprintf(av, "  Drafts generated   %d\n", data.DraftsGenerated)
	_, _ = fmt.Fprintf(av, "  Drafts approved    %d\n", data.DraftsApproved)
	_, _ = fmt.Fprintf(av, "  Posts published    %d\n", data.PostsPublished)
	_, _ = fmt.Fprintf(av, "  Approval rate      %.0f%%\n", data.ApprovalRate*100)
	_, _ = fmt.Fprintf(av, "  Engagement growth  %+.1f%%\n", data.EngagementGrowth)
	_, _ = fmt.Fprintf(av, "  Time saved         %d min\n", data.TimeSaved)

	if len(data.TopThemes) > 0 {
		_, _ = fmt.Fprint(av, "\n  [::b]Top themes[-:-:-]\n")
		for _, th := range data.TopThemes {
			_, _ = fmt.Fprintf(av, "  %-20s %d posts, %d engagement\n", th.Theme, th.Posts, th.Engagement)
		}
	}

	if len(recs) > 0 {
		_, _ = fmt.Fprint(av, "\n  [::b]Recommendations[-:-:-]\n")
		for _, r := range recs {
			_, _ = fmt.Fprintf(av, "  [yellow]*[-] %s\n    [::d]%s[-:-:-]\n", r.Title, r.Description)
		}
	}
}
