package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/nexushq/nexus/internal/api"
)

// ChatView displays the assistant conversation.
type ChatView struct {
	*tview.TextView
}

// NewChatView creates a new chat view.
func NewChatView() *ChatView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Assistant ")

	return &ChatView{TextView: tv}
}

// Update refreshes the chat view with the conversation.
func (cv *ChatView) Update(msgs []api.ChatMessage) {
	cv.Clear()

	for _, m := range msgs {
		who := "Assistant"
		if m.Role == api.RoleUser {
			who = "You"
		}

		marker := ""
		switch m.Delivery {
		case api.DeliverySending:
			marker = " [::d](sending)[-:-:-]"
		case api.DeliveryFailed:
			marker = " [red](failed, r to retry)[-]"
		}

		ts := formatTimestamp(m.Timestamp)
		_, _ = fmt.Fprintf(cv, "[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n", who, ts, marker, sanitizeForTerminal(m.Content))

		for _, action := range m.Actions {
			_, _ = fmt.Fprintf(cv, "  [blue]> %s[-]\n", action.Label)
		}
		_, _ = fmt.Fprint(cv, "\n")
	}

	cv.ScrollToEnd()
}
