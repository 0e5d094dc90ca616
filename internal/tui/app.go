package tui

import (
	"context"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/auth"
	"github.com/nexushq/nexus/internal/bus"
	"github.com/nexushq/nexus/internal/state"
	"github.com/nexushq/nexus/internal/tui/keys"
	"github.com/nexushq/nexus/internal/tui/model"
	"github.com/nexushq/nexus/internal/tui/views"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	store    *state.Store
	auth     *auth.Manager
	bus      *bus.Bus
	registry *keys.Registry
	flash    *model.Flash

	statusBar *views.StatusBar
	draftList *views.DraftList
	chatView  *views.ChatView
	composer  *views.Composer
	analytics *views.AnalyticsView
	authView  *views.AuthView
	prompt    *tview.InputField
	schedule  *tview.InputField

	statusFilter    string
	scheduleDraftID int64

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(store *state.Store, manager *auth.Manager, b *bus.Bus, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		store:     store,
		auth:      manager,
		bus:       b,
		registry:  keys.NewRegistry(),
		flash:     &model.Flash{},
		statusBar: views.NewStatusBar(),
		draftList: views.NewDraftList(),
		chatView:  views.NewChatView(),
		composer:  views.NewComposer(),
		analytics: views.NewAnalyticsView(),
		authView:  views.NewAuthView(),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("drafts", &keys.Action{
		Rune: '1', Key: tcell.KeyRune,
		Description: "1:drafts", Visible: true,
		Handler: func() { a.showDrafts() },
	})
	a.registry.AddGlobal("chat", &keys.Action{
		Rune: '2', Key: tcell.KeyRune,
		Description: "2:chat", Visible: true,
		Handler: func() { a.showChat() },
	})
	a.registry.AddGlobal("analytics", &keys.Action{
		Rune: '3', Key: tcell.KeyRune,
		Description: "3:analytics", Visible: true,
		Handler: func() { a.showAnalytics() },
	})

	a.registry.AddView("drafts", "generate", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Description: "g:generate", Visible: true,
		Handler: func() { a.showPrompt() },
	})
	a.registry.AddView("drafts", "approve", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:approve", Visible: true,
		Handler: func() { a.decideDraft(true) },
	})
	a.registry.AddView("drafts", "reject", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:reject", Visible: true,
		Handler: func() { a.decideDraft(false) },
	})
	a.registry.AddView("drafts", "schedule", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:schedule", Visible: true,
		Handler: func() { a.showSchedule() },
	})
	a.registry.AddView("drafts", "filter", &keys.Action{
		Rune: 'f', Key: tcell.KeyRune,
		Description: "f:filter", Visible: true,
		Handler: func() { a.cycleStatusFilter() },
	})
	a.registry.AddView("drafts", "refresh", &keys.Action{
		Rune: 'R', Key: tcell.KeyRune,
		Description: "R:refresh", Visible: true,
		Handler: func() { a.refreshDrafts() },
	})

	a.registry.AddView("chat", "retry", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:retry", Visible: true,
		Handler: func() { a.retryFailedMessage() },
	})
	a.registry.AddView("chat", "clear", &keys.Action{
		Rune: 'C', Key: tcell.KeyRune,
		Description: "C:clear", Visible: true,
		Handler: func() { a.clearChat() },
	})

	a.registry.AddView("analytics", "fetch", &keys.Action{
		Rune: 'g', Key: tcell.KeyRune,
		Description: "g:fetch", Visible: true,
		Handler: func() { a.refreshAnalytics("month") }, // deeper window on demand
	})
	a.registry.AddView("analytics", "signout", &keys.Action{
		Rune: 'S', Key: tcell.KeyRune,
		Description: "S:sign out", Visible: true,
		Handler: func() { a.signOut() },
	})
}

func (a *App) setupCallbacks() {
	a.composer.SetOnSend(func(text string) {
		go func() {
			if _, err := a.store.SendMessage(a.ctx, text); err != nil {
				a.flash.Set("Send failed: "+err.Error(), 5*time.Second)
			}
			a.redrawChat()
		}()
	})

	a.authView.SetOnSignIn(func(email, password string) {
		a.runAuth(func(ctx context.Context) error { return a.auth.SignIn(ctx, email, password) })
	})
	a.authView.SetOnSignUp(func(email, password, displayName string) {
		a.runAuth(func(ctx context.Context) error { return a.auth.SignUp(ctx, email, password, displayName) })
	})

	a.prompt = tview.NewInputField().
		SetLabel(" Generate about: ").
		SetFieldWidth(0)
	a.prompt.SetBorder(true).SetTitle(" New drafts ")
	a.prompt.SetDoneFunc(func(key tcell.Key) {
		topic := strings.TrimSpace(a.prompt.GetText())
		a.prompt.SetText("")
		a.pages.SwitchToPage("drafts")
		a.app.SetFocus(a.draftList)
		if key != tcell.KeyEnter {
			return
		}
		go func() {
			if _, err := a.store.GenerateDrafts(a.ctx, api.GenerateRequest{Prompt: topic, Count: 3}); err != nil {
				a.flash.Set("Generate failed: "+err.Error(), 5*time.Second)
			}
			a.redrawDrafts()
		}()
	})

	a.schedule = tview.NewInputField().
		SetLabel(" Publish at (YYYY-MM-DD HH:MM): ").
		SetFieldWidth(0)
	a.schedule.SetBorder(true).SetTitle(" Schedule draft ")
	a.schedule.SetDoneFunc(func(key tcell.Key) {
		text := strings.TrimSpace(a.schedule.GetText())
		a.schedule.SetText("")
		id := a.scheduleDraftID
		a.scheduleDraftID = 0
		a.pages.SwitchToPage("drafts")
		a.app.SetFocus(a.draftList)
		if key != tcell.KeyEnter || id == 0 {
			return
		}
		at, err := time.ParseInLocation("2006-01-02 15:04", text, time.Local)
		if err != nil {
			a.flash.Set("Bad time, use YYYY-MM-DD HH:MM", 5*time.Second)
			a.redrawDrafts()
			return
		}
		go func() {
			if err := a.store.ApproveDraft(a.ctx, id, &at); err != nil {
				a.flash.Set("Schedule failed: "+err.Error(), 5*time.Second)
			}
			a.redrawDrafts()
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.chatView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("auth", a.authView, true, true)
	a.pages.AddPage("drafts", a.draftList, true, false)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("analytics", a.analytics, true, false)
	a.pages.AddPage("prompt", center(a.prompt, 60, 3), true, false)
	a.pages.AddPage("schedule", center(a.schedule, 60, 3), true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && (currentPage == "prompt" || currentPage == "schedule") {
			a.pages.SwitchToPage("drafts")
			a.app.SetFocus(a.draftList)
			return nil
		}

		// Auth gate: only the form handles input until signed in.
		if currentPage == "auth" {
			return event
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

// center wraps a primitive in a fixed-size centered frame.
func center(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 0, true).
			AddItem(nil, 0, 1, false), width, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) runAuth(grant func(context.Context) error) {
	a.authView.ShowMessage("Signing in...")
	go func() {
		err := grant(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.authView.ShowError(err.Error())
				return
			}
			if user := a.auth.User(); user != nil {
				a.statusBar.SetUser(user.Email)
			}
			a.showDrafts()
		})
		if err == nil {
			a.refreshDrafts()
			go func() { _ = a.store.LoadChatHistory(a.ctx, 100); a.redrawChat() }()
		}
	}()
}

func (a *App) signOut() {
	go func() {
		if err := a.auth.SignOut(a.ctx); err != nil {
			a.flash.Set("Sign out failed: "+err.Error(), 5*time.Second)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetUser("")
			a.authView.ShowMessage("Signed out.")
			a.pages.SwitchToPage("auth")
			a.app.SetFocus(a.authView.Form())
		})
	}()
}

func (a *App) showDrafts() {
	a.pages.SwitchToPage("drafts")
	a.draftList.Update(a.store.Drafts())
	a.app.SetFocus(a.draftList)
}

func (a *App) showChat() {
	a.pages.SwitchToPage("chat")
	a.chatView.Update(a.store.Messages())
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) showAnalytics() {
	a.pages.SwitchToPage("analytics")
	a.analytics.Update(a.store.Analytics(), a.store.Recommendations())
	a.app.SetFocus(a.analytics)
	if a.store.Analytics() == nil {
		a.refreshAnalytics("week")
	}
}

func (a *App) showPrompt() {
	a.pages.SwitchToPage("prompt")
	a.app.SetFocus(a.prompt)
}

func (a *App) decideDraft(approve bool) {
	id := a.draftList.SelectedDraft()
	if id == 0 {
		return
	}
	go func() {
		var err error
		if approve {
			err = a.store.ApproveDraft(a.ctx, id, nil)
		} else {
			err = a.store.RejectDraft(a.ctx, id, "")
		}
		if err != nil {
			a.flash.Set("Update failed: "+err.Error(), 5*time.Second)
		}
		a.redrawDrafts()
	}()
}

func (a *App) retryFailedMessage() {
	var clientID string
	for _, m := range a.store.Messages() {
		if m.Delivery == api.DeliveryFailed {
			clientID = m.ClientID
		}
	}
	if clientID == "" {
		return
	}
	go func() {
		if _, err := a.store.RetryMessage(a.ctx, clientID); err != nil {
			a.flash.Set("Retry failed: "+err.Error(), 5*time.Second)
		}
		a.redrawChat()
	}()
}

func (a *App) clearChat() {
	go func() {
		if err := a.store.ClearChatHistory(a.ctx); err != nil {
			a.flash.Set("Clear failed: "+err.Error(), 5*time.Second)
		}
		a.redrawChat()
	}()
}

func (a *App) showSchedule() {
	id := a.draftList.SelectedDraft()
	if id == 0 {
		return
	}
	a.scheduleDraftID = id
	a.pages.SwitchToPage("schedule")
	a.app.SetFocus(a.schedule)
}

var filterCycle = []string{"", api.DraftPending, api.DraftApproved, api.DraftScheduled, api.DraftPublished, api.DraftRejected}

func (a *App) cycleStatusFilter() {
	next := 0
	for i, st := range filterCycle {
		if st == a.statusFilter {
			next = (i + 1) % len(filterCycle)
			break
		}
	}
	a.statusFilter = filterCycle[next]
	title := " Drafts "
	if a.statusFilter != "" {
		title = " Drafts (" + a.statusFilter + ") "
	}
	a.draftList.SetTitle(title)
	a.refreshDrafts()
}

func (a *App) refreshDrafts() {
	go func() {
		if err := a.store.LoadDrafts(a.ctx, a.statusFilter); err != nil {
			a.flash.Set("Load failed: "+err.Error(), 5*time.Second)
		}
		a.redrawDrafts()
	}()
}

func (a *App) refreshAnalytics(timeRange string) {
	go func() {
		if err := a.store.LoadAnalytics(a.ctx, timeRange); err != nil {
			a.flash.Set("Analytics failed: "+err.Error(), 5*time.Second)
		}
		_ = a.store.LoadRecommendations(a.ctx)
		a.app.QueueUpdateDraw(func() {
			a.analytics.Update(a.store.Analytics(), a.store.Recommendations())
			a.syncStatusBar()
		})
	}()
}

func (a *App) redrawDrafts() {
	a.app.QueueUpdateDraw(func() {
		a.draftList.Update(a.store.Drafts())
		a.syncStatusBar()
	})
}

func (a *App) redrawChat() {
	a.app.QueueUpdateDraw(func() {
		a.chatView.Update(a.store.Messages())
		a.syncStatusBar()
	})
}

func (a *App) syncStatusBar() {
	loading := a.store.Loading()
	a.statusBar.SetBusy(loading.Drafts || loading.Chat || loading.Analytics)
	msg := a.flash.Get()
	if msg == "" {
		msg = a.store.LastError()
	}
	a.statusBar.SetFlash(msg)
}

// Run starts the TUI application.
func (a *App) Run() error {
	if a.auth.Status() == auth.SignedIn {
		a.pages.SwitchToPage("drafts")
		a.refreshDrafts()
	} else {
		a.app.SetFocus(a.authView.Form())
	}

	a.watchBus()
	a.startRefreshLoop()

	err := a.app.Run()
	a.cancel()
	return err
}

// Stop terminates the UI event loop.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// watchBus mirrors store changes onto whichever page is visible.
func (a *App) watchBus() {
	if a.bus == nil {
		return
	}
	ch, unsub := a.bus.Subscribe("state.", 64)
	go func() {
		defer unsub()
		for {
			select {
			case evt, ok := <-ch:
				if !ok {
					return
				}
				a.app.QueueUpdateDraw(func() {
					currentPage, _ := a.pages.GetFrontPage()
					switch evt.Kind {
					case bus.KindDraftsChanged:
						if currentPage == "drafts" {
							a.draftList.Update(a.store.Drafts())
						}
					case bus.KindChatChanged:
						if currentPage == "chat" {
							a.chatView.Update(a.store.Messages())
						}
					}
					a.syncStatusBar()
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if a.auth.Status() != auth.SignedIn {
					continue
				}
				_ = a.auth.RefreshSession(a.ctx)
				currentPage, _ := a.pages.GetFrontPage()
				switch currentPage {
				case "drafts":
					a.refreshDrafts()
				case "chat":
					go func() { _ = a.store.LoadChatHistory(a.ctx, 100); a.redrawChat() }()
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
}
