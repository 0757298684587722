// go_hh — automated job applications for hh.ru.
//
// Periodically republishes a résumé and applies to similar vacancies
// through the hh.ru mobile API, with randomized human-like pacing and
// a fresh synthetic client identity on every request.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/anatolykoptev/go-kit/env"

	"github.com/anatolykoptev/go_hh/internal/automation"
	"github.com/anatolykoptev/go_hh/internal/cli"
	"github.com/anatolykoptev/go_hh/internal/hh"
	"github.com/anatolykoptev/go_hh/internal/store"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "go_hh:", err)
		os.Exit(1)
	}
}

func run() error {
	setupLogging(env.Str("LOG_LEVEL", "info"))

	dbPath := env.Str("HH_DB_PATH", filepath.Join(defaultHome(), "go_hh.db"))
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	client := hh.New(hh.Config{
		APIURL:       env.Str("HH_API_URL", hh.DefaultAPIURL),
		OAuthURL:     env.Str("HH_OAUTH_URL", hh.DefaultOAuthURL),
		ClientID:     env.Str("HH_CLIENT_ID", ""),
		ClientSecret: env.Str("HH_CLIENT_SECRET", ""),
		Delay:        env.Duration("HH_API_DELAY", hh.DefaultDelay),
		Store:        st,
	})

	flex := env.Duration("HH_FLEX_WINDOW", automation.FlexWindow)
	scheduler := automation.NewScheduler(flex)
	defer scheduler.Shutdown()

	app := &cli.App{
		Client:          client,
		Store:           st,
		Scheduler:       scheduler,
		Notify:          consoleNotifier{},
		RedirectURI:     env.Str("HH_REDIRECT_URI", hh.RedirectScheme+"://oauthresponse"),
		ApplyInterval:   env.Duration("HH_APPLY_INTERVAL", automation.ApplyInterval),
		RefreshInterval: env.Duration("HH_REFRESH_INTERVAL", automation.RefreshInterval),
	}
	return cli.New(app, version).Execute()
}

// consoleNotifier prints status lines for the interactive user and
// mirrors them to the structured log.
type consoleNotifier struct{}

func (consoleNotifier) Notify(message string) {
	fmt.Println(message)
	slog.Debug("notification", slog.String("message", message))
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".go_hh")
}
