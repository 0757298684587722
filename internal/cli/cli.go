// Package cli is the command surface of go_hh: authentication, résumé
// selection, one-shot runs and the long-running automation daemon.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anatolykoptev/go_hh/internal/automation"
	"github.com/anatolykoptev/go_hh/internal/hh"
	"github.com/anatolykoptev/go_hh/internal/letter"
	"github.com/anatolykoptev/go_hh/internal/store"
)

// App bundles the wired dependencies commands operate on.
type App struct {
	Client    *hh.Client
	Store     *store.Store
	Scheduler *automation.Scheduler
	Notify    automation.Notifier

	RedirectURI     string
	ApplyInterval   time.Duration
	RefreshInterval time.Duration
}

// New builds the root command.
func New(app *App, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "go_hh",
		Short:         "Automated résumé publishing and vacancy applications for hh.ru",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAuthCmd(app),
		newResumesCmd(app),
		newConfigCmd(app),
		newRunCmd(app),
		newApplyCmd(app),
		newRefreshCmd(app),
		newHistoryCmd(app),
		newVacancyCmd(app),
	)
	return root
}

// applySpec assembles the apply job input from persisted settings.
func applySpec(st *store.Store) (automation.ApplyJobSpec, error) {
	resumeID, err := st.Get(store.KeySelectedResumeID)
	if err != nil {
		return automation.ApplyJobSpec{}, err
	}
	if resumeID == "" {
		return automation.ApplyJobSpec{}, fmt.Errorf("no résumé selected; run 'go_hh resumes' and 'go_hh config set resume <id>'")
	}
	query, err := st.Get(store.KeySearchQuery)
	if err != nil {
		return automation.ApplyJobSpec{}, err
	}
	coverLetter, err := st.Get(store.KeyCoverLetter)
	if err != nil {
		return automation.ApplyJobSpec{}, err
	}
	if coverLetter == "" {
		coverLetter = letter.DefaultTemplate
	}
	alwaysAttach, err := st.GetBool(store.KeyAlwaysAttach)
	if err != nil {
		return automation.ApplyJobSpec{}, err
	}
	return automation.ApplyJobSpec{
		ResumeID:     resumeID,
		SearchQuery:  query,
		CoverLetter:  coverLetter,
		AlwaysAttach: alwaysAttach,
	}, nil
}

func requireAuth(app *App) error {
	if !app.Client.IsAuthenticated() {
		return fmt.Errorf("not authenticated; run 'go_hh auth' first")
	}
	return nil
}

func newRunCmd(app *App) *cobra.Command {
	var noApply, noRefresh bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the automation daemon (periodic apply + résumé refresh)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(app); err != nil {
				return err
			}
			spec, err := applySpec(app.Store)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !noApply {
				err := app.Scheduler.Start(automation.JobApply, app.ApplyInterval, func(ctx context.Context) error {
					return automation.RunApply(ctx, app.Client, app.Store, app.Notify, spec)
				})
				if err != nil {
					return err
				}
			}
			if !noRefresh {
				err := app.Scheduler.Start(automation.JobRefresh, app.RefreshInterval, func(ctx context.Context) error {
					return automation.RunRefresh(ctx, app.Client, app.Notify, spec.ResumeID)
				})
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Automation running. Press Ctrl+C to stop.")
			<-ctx.Done()
			app.Scheduler.Shutdown()
			return nil
		},
	}
	cmd.Flags().BoolVar(&noApply, "no-apply", false, "do not schedule vacancy applications")
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "do not schedule résumé refreshing")
	return cmd
}

func newApplyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Run one crawl/apply pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(app); err != nil {
				return err
			}
			spec, err := applySpec(app.Store)
			if err != nil {
				return err
			}
			return automation.RunApply(cmd.Context(), app.Client, app.Store, app.Notify, spec)
		},
	}
}

func newRefreshCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Republish the selected résumé now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAuth(app); err != nil {
				return err
			}
			resumeID, err := app.Store.Get(store.KeySelectedResumeID)
			if err != nil {
				return err
			}
			return automation.RunRefresh(cmd.Context(), app.Client, app.Notify, resumeID)
		},
	}
}
