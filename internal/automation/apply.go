// Package automation contains the scheduled workers built on the API
// client: the crawl/apply engine, the résumé refresh task and the
// scheduler adapter that runs them.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/strutil"

	"github.com/anatolykoptev/go_hh/internal/hh"
	"github.com/anatolykoptev/go_hh/internal/letter"
)

const (
	maxPages = 20
	perPage  = 100

	pageDelayMin = 1 * time.Second
	pageDelayMax = 3 * time.Second
	stepDelayMin = 3 * time.Second
	stepDelayMax = 5 * time.Second

	viewVacancyChance = 50 // percent
	viewEmployerChance = 25
)

// ApplyJobSpec is the immutable input of one apply run.
type ApplyJobSpec struct {
	ResumeID     string
	SearchQuery  string
	CoverLetter  string
	AlwaysAttach bool
}

// History records submitted applications. Implemented by store.Store;
// nil disables recording.
type History interface {
	RecordApplication(vacancyID, name, url, message string) error
}

// applyRun carries the state of a single crawl/apply pass. Randomness
// and sleeping are injected so tests run deterministic and instant.
type applyRun struct {
	client  *hh.Client
	history History
	notify  Notifier
	spec    ApplyJobSpec

	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error

	firstName string
	lastName  string
}

// RunApply executes one crawl/apply pass: paginate similar vacancies
// for the résumé, filter candidates, optionally view vacancy and
// employer pages with human-like pacing, and submit applications until
// the pages are exhausted or the platform reports its application cap.
// A retryable error asks the scheduler to re-run later.
func RunApply(ctx context.Context, client *hh.Client, history History, notify Notifier, spec ApplyJobSpec) error {
	r := &applyRun{
		client:  client,
		history: history,
		notify:  notify,
		spec:    spec,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		sleep:   sleepCtx,
	}
	return r.run(ctx)
}

func (r *applyRun) run(ctx context.Context) error {
	if r.spec.ResumeID == "" {
		r.notify.Notify("❌ No résumé selected.")
		return errors.New("apply: resume id is empty")
	}

	r.notify.Notify("📨 Application run started...")

	me, err := r.client.API(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		slog.Error("apply: fetching user identity failed", slog.Any("error", err))
		r.notify.Notify("❌ Could not load user profile: " + err.Error())
		return Retryable(fmt.Errorf("apply: fetch identity: %w", err))
	}
	r.firstName = stringField(me, "first_name")
	r.lastName = stringField(me, "last_name")

	if err := r.crawl(ctx); err != nil {
		r.notify.Notify("❌ Application run failed: " + err.Error())
		return err
	}
	r.notify.Notify("✅ All applications sent.")
	return nil
}

// crawl walks up to maxPages result pages. Returning nil means the run
// completed — including the deliberate stop on a limit-exceeded
// submission response.
func (r *applyRun) crawl(ctx context.Context) error {
	for page := 0; page < maxPages; page++ {
		if page > 1 {
			if err := r.pause(ctx, pageDelayMin, pageDelayMax); err != nil {
				return err
			}
		}

		params := map[string]string{
			"page":     fmt.Sprintf("%d", page),
			"per_page": fmt.Sprintf("%d", perPage),
		}
		if q := strings.TrimSpace(r.spec.SearchQuery); q != "" {
			params["text"] = q
		}

		response, err := r.client.API(ctx, http.MethodGet,
			"/resumes/"+r.spec.ResumeID+"/similar_vacancies", params)
		if err != nil {
			slog.Error("apply: fetching vacancies failed",
				slog.Int("page", page), slog.Any("error", err))
			return Retryable(fmt.Errorf("apply: fetch page %d: %w", page, err))
		}

		items, _ := response["items"].([]any)
		pages := intField(response, "pages")

		if len(items) == 0 {
			slog.Debug("apply: empty page", slog.Int("page", page), slog.Int("pages", pages))
			if page >= pages-1 {
				break
			}
			continue
		}

		stop, err := r.applyToItems(ctx, items)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}

		if page >= pages-1 {
			slog.Debug("apply: reached last page", slog.Int("page", page), slog.Int("pages", pages))
			break
		}
	}
	return nil
}

// applyToItems processes one page of candidates. stop=true means the
// whole run must terminate (application cap reached).
func (r *applyRun) applyToItems(ctx context.Context, items []any) (stop bool, err error) {
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		c := candidateFromItem(item)

		if c.HasTest || c.Archived {
			slog.Debug("apply: skipping vacancy", slog.String("id", c.ID), slog.String("reason", "has_test or archived"))
			continue
		}
		if len(c.Relations) > 0 {
			slog.Debug("apply: skipping vacancy", slog.String("id", c.ID), slog.String("reason", "already related"))
			continue
		}
		if c.ID == "" {
			slog.Warn("apply: vacancy without id, skipping", slog.Any("item", item))
			continue
		}

		if r.rng.IntN(100) < viewVacancyChance {
			if err := r.view(ctx, c); err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				slog.Warn("apply: viewing failed", slog.String("vacancy", c.ID), slog.Any("error", err))
				r.notify.Notify("❌ Viewing " + shorten(c.Name) + " failed: " + err.Error())
				continue
			}
		}

		stop, err := r.submit(ctx, c)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// view simulates organic browsing: open the vacancy page, linger, and
// sometimes also open the employer page.
func (r *applyRun) view(ctx context.Context, c Candidate) error {
	slog.Debug("apply: viewing vacancy", slog.String("vacancy", c.ID))
	if _, err := r.client.API(ctx, http.MethodGet, "/vacancies/"+c.ID, nil); err != nil {
		return err
	}
	if err := r.pause(ctx, stepDelayMin, stepDelayMax); err != nil {
		return err
	}

	if c.EmployerID != "" && r.rng.IntN(100) < viewEmployerChance {
		slog.Debug("apply: viewing employer", slog.String("employer", c.EmployerID))
		if _, err := r.client.API(ctx, http.MethodGet, "/employers/"+c.EmployerID, nil); err != nil {
			return err
		}
		if err := r.pause(ctx, stepDelayMin, stepDelayMax); err != nil {
			return err
		}
	}
	return nil
}

// submit sends one application. stop=true terminates the run
// deliberately when the platform reports the application cap.
func (r *applyRun) submit(ctx context.Context, c Candidate) (stop bool, err error) {
	payload := map[string]string{
		"resume_id":  r.spec.ResumeID,
		"vacancy_id": c.ID,
	}

	var message string
	if c.ResponseLetterRequired || r.spec.AlwaysAttach {
		message = letter.Expand(r.spec.CoverLetter, map[string]string{
			"vacancyName": c.Name,
			"firstName":   r.firstName,
			"lastName":    r.lastName,
		}, r.rng)
		payload["message"] = message
	}

	_, err = r.client.API(ctx, http.MethodPost, "/negotiations", payload)
	if err != nil {
		var apiErr *hh.APIError
		if errors.As(err, &apiErr) {
			if apiErr.Kind == hh.KindLimitExceeded {
				slog.Warn("apply: application limit reached, stopping run")
				r.notify.Notify("⚠️ Application limit reached.")
				return true, nil
			}
			slog.Warn("apply: application failed",
				slog.String("vacancy", c.ID), slog.Any("error", err))
			r.notify.Notify("❌ Applying to " + shorten(c.Name) + " failed: " + err.Error())
			return false, nil
		}
		return false, Retryable(fmt.Errorf("apply: submit %s: %w", c.ID, err))
	}

	slog.Info("apply: application sent",
		slog.String("vacancy", c.ID), slog.String("url", c.AlternateURL))
	r.notify.Notify("✅ Applied to " + c.AlternateURL + " (" + shorten(c.Name) + ")")

	if r.history != nil {
		if herr := r.history.RecordApplication(c.ID, c.Name, c.AlternateURL, message); herr != nil {
			slog.Warn("apply: recording application failed", slog.Any("error", herr))
		}
	}

	return false, r.pause(ctx, stepDelayMin, stepDelayMax)
}

// pause waits a uniformly random duration in [min, max), observing
// cancellation.
func (r *applyRun) pause(ctx context.Context, min, max time.Duration) error {
	d := min + time.Duration(r.rng.Int64N(int64(max-min)))
	slog.Debug("apply: pacing", slog.Duration("delay", d))
	return r.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func shorten(name string) string {
	return strutil.TruncateWith(name, 60, "…")
}
