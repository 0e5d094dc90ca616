package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/nexushq/nexus/internal/api"
	"github.com/nexushq/nexus/internal/auth"
	"github.com/nexushq/nexus/internal/config"
	"github.com/nexushq/nexus/internal/session"
)

func main() {
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	emailFlag := flag.String("email", "", "account email (or NEXUS_EMAIL)")
	passwordFlag := flag.String("password", "", "account password (or NEXUS_PASSWORD)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		fatal(err)
	}

	client := api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		Version: cfg.API.Version,
		Timeout: cfg.API.Timeout.Duration,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	email := firstNonEmpty(*emailFlag, os.Getenv("NEXUS_EMAIL"))
	password := firstNonEmpty(*passwordFlag, os.Getenv("NEXUS_PASSWORD"))
	if email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "error: credentials required (--email/--password or NEXUS_EMAIL/NEXUS_PASSWORD)")
		os.Exit(1)
	}

	provider := auth.NewIdentityProvider(cfg.Identity.APIKey, zap.NewNop())
	creds, err := provider.SignIn(ctx, email, password)
	if err != nil {
		fatal(err)
	}
	verify, err := client.VerifyIDToken(ctx, creds.IDToken)
	if err != nil {
		fatal(err)
	}
	client.SetToken(verify.Token)

	switch args[0] {
	case "whoami":
		cmdWhoami(ctx, client, *jsonFlag)
	case "generate":
		cmdGenerate(ctx, client, args[1:], *jsonFlag)
	case "drafts":
		cmdDrafts(ctx, client, args[1:], *jsonFlag)
	case "approve":
		cmdApprove(ctx, client, args[1:], *jsonFlag)
	case "reject":
		cmdReject(ctx, client, args[1:], *jsonFlag)
	case "chat":
		cmdChat(ctx, client, args[1:], *jsonFlag)
	case "analytics":
		cmdAnalytics(ctx, client, args[1:], *jsonFlag)
	case "profile":
		cmdProfile(ctx, client, *jsonFlag)
	case "draft":
		cmdDraft(ctx, client, args[1:], *jsonFlag)
	case "trends":
		cmdTrends(ctx, client, args[1:], *jsonFlag)
	case "recommendations":
		cmdRecommendations(ctx, client, *jsonFlag)
	case "voice":
		cmdVoice(ctx, client, args[1:], *jsonFlag)
	case "feedback":
		cmdFeedback(ctx, client, args[1:])
	case "integrations":
		cmdIntegrations(ctx, client, args[1:], *jsonFlag)
	case "notion":
		cmdNotion(ctx, client, args[1:], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: nexusctl [--email <addr>] [--password <pw>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  whoami                    Show the authenticated user")
	fmt.Fprintln(os.Stderr, "  generate [topic]          Generate new drafts")
	fmt.Fprintln(os.Stderr, "  drafts [status]           List drafts, optionally by status")
	fmt.Fprintln(os.Stderr, "  approve <id> [time]       Approve a draft, optionally scheduling (RFC 3339)")
	fmt.Fprintln(os.Stderr, "  reject <id> [reason]      Reject a draft")
	fmt.Fprintln(os.Stderr, "  chat <message>            Send a message to the assistant")
	fmt.Fprintln(os.Stderr, "  analytics [range]         Show analytics (week, month or quarter)")
	fmt.Fprintln(os.Stderr, "  profile                   Show the user profile")
	fmt.Fprintln(os.Stderr, "  draft <id>                Show one draft")
	fmt.Fprintln(os.Stderr, "  trends [days]             Show engagement trends")
	fmt.Fprintln(os.Stderr, "  recommendations           Show AI recommendations")
	fmt.Fprintln(os.Stderr, "  voice <sample>...         Analyze writing samples")
	fmt.Fprintln(os.Stderr, "  feedback <type> <rating> [comment]")
	fmt.Fprintln(os.Stderr, "  integrations              List connected accounts")
	fmt.Fprintln(os.Stderr, "  integrations connect <type> <code>")
	fmt.Fprintln(os.Stderr, "  integrations disconnect <id>")
	fmt.Fprintln(os.Stderr, "  notion <title> <content>  Export content to Notion")
}

func cmdWhoami(ctx context.Context, client *api.Client, jsonOut bool) {
	// Round-trips through the backend so the bearer token is verified too.
	user, err := client.Me(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(user)
		return
	}
	fmt.Printf("User:  %s\n", user.ID)
	fmt.Printf("Email: %s\n", user.Email)
}

func cmdGenerate(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	var prompt string
	if len(args) > 0 {
		prompt = args[0]
	}
	drafts, err := client.GenerateDrafts(ctx, api.GenerateRequest{Prompt: prompt, Count: 3})
	if err != nil {
		fatal(err)
	}
	printDrafts(drafts, jsonOut)
}

func cmdDrafts(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	var status string
	if len(args) > 0 {
		status = args[0]
	}
	drafts, err := client.ListDrafts(ctx, status)
	if err != nil {
		fatal(err)
	}
	printDrafts(drafts, jsonOut)
}

func cmdApprove(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl approve <id> [time]")
		os.Exit(1)
	}
	id := parseID(args[0])

	var scheduleTime *time.Time
	if len(args) > 1 {
		t, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			fatal(fmt.Errorf("invalid schedule time %q: %w", args[1], err))
		}
		scheduleTime = &t
	}

	draft, err := client.ApproveDraft(ctx, id, scheduleTime)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(draft)
		return
	}
	fmt.Printf("Draft %d is now %s\n", draft.ID, draft.Status)
}

func cmdReject(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl reject <id> [reason]")
		os.Exit(1)
	}
	id := parseID(args[0])

	var reason string
	if len(args) > 1 {
		reason = args[1]
	}

	draft, err := client.RejectDraft(ctx, id, reason)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(draft)
		return
	}
	fmt.Printf("Draft %d is now %s\n", draft.ID, draft.Status)
}

func cmdChat(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl chat <message>")
		os.Exit(1)
	}
	reply, err := client.SendMessage(ctx, args[0])
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(reply)
		return
	}
	fmt.Println(reply.Content)
	for _, action := range reply.Actions {
		fmt.Printf("  > %s\n", action.Label)
	}
}

func cmdAnalytics(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	timeRange := "week"
	if len(args) > 0 {
		timeRange = args[0]
	}
	data, err := client.Analytics(ctx, timeRange)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(data)
		return
	}
	fmt.Printf("Range:             %s\n", data.TimeRange)
	fmt.Printf("Drafts generated:  %d\n", data.DraftsGenerated)
	fmt.Printf("Drafts approved:   %d\n", data.DraftsApproved)
	fmt.Printf("Posts published:   %d\n", data.PostsPublished)
	fmt.Printf("Approval rate:     %.0f%%\n", data.ApprovalRate*100)
	fmt.Printf("Engagement growth: %+.1f%%\n", data.EngagementGrowth)
}

func cmdProfile(ctx context.Context, client *api.Client, jsonOut bool) {
	profile, err := client.Profile(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(profile)
		return
	}
	fmt.Printf("Goals:  %v\n", profile.Goals)
	fmt.Printf("Themes: %v\n", profile.Themes)
	fmt.Printf("Tone:   formal %d, punchy %d, contrarian %d\n",
		profile.VoiceProfile.Tone.Formal,
		profile.VoiceProfile.Tone.Punchy,
		profile.VoiceProfile.Tone.Contrarian)
	fmt.Printf("Auto-approve: %v\n", profile.Preferences.Posting.AutoApprove)
}

func cmdDraft(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl draft <id>")
		os.Exit(1)
	}
	draft, err := client.GetDraft(ctx, parseID(args[0]))
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(draft)
		return
	}
	fmt.Printf("Draft %d (%s, %s)\n\n%s\n", draft.ID, draft.Status, draft.Platform, draft.Content)
	for i, v := range draft.Variants {
		fmt.Printf("\nVariant %d:\n%s\n", i+1, v)
	}
}

func cmdTrends(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	days := 30
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fatal(fmt.Errorf("invalid day count %q", args[0]))
		}
		days = n
	}
	trends, err := client.EngagementTrends(ctx, days)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(trends)
		return
	}
	for _, tr := range trends {
		fmt.Printf("%s  %6d impressions  %5d engagement  %d posts\n", tr.Date, tr.Impressions, tr.Engagement, tr.Posts)
	}
}

func cmdRecommendations(ctx context.Context, client *api.Client, jsonOut bool) {
	recs, err := client.Recommendations(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(recs)
		return
	}
	for _, r := range recs {
		fmt.Printf("* %s\n  %s\n", r.Title, r.Description)
	}
}

func cmdVoice(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl voice <sample>...")
		os.Exit(1)
	}
	analysis, err := client.AnalyzeVoice(ctx, args)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(analysis)
		return
	}
	fmt.Printf("Tone:    formal %d, punchy %d, contrarian %d\n",
		analysis.Tone.Formal, analysis.Tone.Punchy, analysis.Tone.Contrarian)
	fmt.Printf("Summary: %s\n", analysis.Summary)
}

func cmdFeedback(ctx context.Context, client *api.Client, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl feedback <type> <rating> [comment]")
		os.Exit(1)
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		fatal(fmt.Errorf("invalid rating %q", args[1]))
	}
	fb := api.Feedback{Type: args[0], Rating: rating}
	if len(args) > 2 {
		fb.Comment = args[2]
	}
	if err := client.SendFeedback(ctx, fb); err != nil {
		fatal(err)
	}
	fmt.Println("Thanks for the feedback.")
}

func cmdIntegrations(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		integrations, err := client.Integrations(ctx)
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(integrations)
			return
		}
		if len(integrations) == 0 {
			fmt.Println("no connected accounts")
			return
		}
		for _, in := range integrations {
			fmt.Printf("%-6d %-10s %s\n", in.ID, in.Type, in.Status)
		}
		return
	}

	switch args[0] {
	case "connect":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: nexusctl integrations connect <type> <code>")
			os.Exit(1)
		}
		integration, err := client.ConnectIntegration(ctx, args[1], args[2])
		if err != nil {
			fatal(err)
		}
		if jsonOut {
			outputJSON(integration)
			return
		}
		fmt.Printf("Connected %s (id %d, %s)\n", integration.Type, integration.ID, integration.Status)
	case "disconnect":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: nexusctl integrations disconnect <id>")
			os.Exit(1)
		}
		if err := client.DisconnectIntegration(ctx, parseID(args[1])); err != nil {
			fatal(err)
		}
		fmt.Println("Disconnected.")
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: integrations %s\n", args[0])
		os.Exit(1)
	}
}

func cmdNotion(ctx context.Context, client *api.Client, args []string, jsonOut bool) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: nexusctl notion <title> <content>")
		os.Exit(1)
	}
	page, err := client.CreateNotionPage(ctx, api.NotionPageRequest{Title: args[0], Content: args[1]})
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(page)
		return
	}
	fmt.Printf("Created page %s\n", page.URL)
}

func printDrafts(drafts []api.Draft, jsonOut bool) {
	if jsonOut {
		outputJSON(drafts)
		return
	}
	if len(drafts) == 0 {
		fmt.Println("no drafts")
		return
	}
	for _, d := range drafts {
		scheduled := ""
		if d.ScheduledFor != nil {
			scheduled = "  @ " + d.ScheduledFor.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-6d %-10s %-9s %s%s\n", d.ID, d.Status, d.Platform, oneLine(d.Content, 70), scheduled)
	}
}

func oneLine(s string, max int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return string(r)
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fatal(fmt.Errorf("invalid draft id %q", s))
	}
	return id
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
