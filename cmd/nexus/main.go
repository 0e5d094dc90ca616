package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/nexushq/nexus/internal/app"
	"github.com/nexushq/nexus/internal/auth"
	"github.com/nexushq/nexus/internal/bus"
	"github.com/nexushq/nexus/internal/config"
	"github.com/nexushq/nexus/internal/session"
	"github.com/nexushq/nexus/internal/state"
	"github.com/nexushq/nexus/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Write a starter config on first run so users have something to edit.
	if _, err := os.Stat(session.ConfigPath()); os.IsNotExist(err) {
		cfg, err := config.Load(session.ConfigPath())
		if err == nil {
			_ = config.Save(session.ConfigPath(), cfg)
		}
	}

	var runErr error
	fxApp := fx.New(
		app.Module(app.Params{SessionName: sessionName}),
		fx.NopLogger,
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, st *state.Store, mgr *auth.Manager, b *bus.Bus) {
			ui := tui.NewApp(st, mgr, b, sessionName)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						runErr = ui.Run()
						_ = sd.Shutdown()
					}()
					return nil
				},
				OnStop: func(_ context.Context) error {
					ui.Stop()
					return nil
				},
			})
		}),
	)

	fxApp.Run()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
