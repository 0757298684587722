package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/go_hh/internal/hh"
)

// RunRefresh republishes the résumé so it stays near the top of search
// results. Classified API errors are benign — they must not tear down
// the periodic schedule — while anything unexpected asks for a retry.
func RunRefresh(ctx context.Context, client *hh.Client, notify Notifier, resumeID string) error {
	if resumeID == "" {
		notify.Notify("❌ No résumé selected for refresh.")
		return errors.New("refresh: resume id is empty")
	}

	_, err := client.API(ctx, http.MethodPost, "/resumes/"+resumeID+"/publish", nil)
	if err == nil {
		slog.Info("refresh: résumé republished", slog.String("resume", resumeID))
		notify.Notify("✅ Résumé republished.")
		return nil
	}

	var apiErr *hh.APIError
	if errors.As(err, &apiErr) {
		// Often just "too early to republish"; the next tick will try again.
		slog.Warn("refresh: republish rejected", slog.Any("error", err))
		notify.Notify("❌ Résumé refresh rejected: " + err.Error())
		return nil
	}

	slog.Error("refresh: republish failed", slog.Any("error", err))
	notify.Notify("❌ Résumé refresh failed: " + err.Error())
	return Retryable(fmt.Errorf("refresh: publish %s: %w", resumeID, err))
}
