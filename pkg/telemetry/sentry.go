package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"

	"github.com/ghuser/secondchance/pkg/config"
)

// SetupSentry initializes the Sentry SDK and tags every event with the
// configured store and image backends. No-op when SENTRY_DSN is empty.
func SetupSentry(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          cfg.ServiceName + "@" + cfg.ServiceVersion,
		TracesSampleRate: 0.2,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("store_driver", cfg.StoreDriver)
		scope.SetTag("storage_driver", cfg.StorageDriver)
	})
	return nil
}

// SentryFlush flushes buffered events before process exit.
func SentryFlush() {
	sentry.Flush(2 * time.Second)
}

// SentryMiddleware captures panics and attaches a per-request hub to the
// context. Repanic is set so the Recoverer middleware still writes the 500.
func SentryMiddleware() func(http.Handler) http.Handler {
	h := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return h.Handle
}

// CaptureError reports err on the request hub when one is attached to ctx,
// and on the global hub otherwise. Extra key/value pairs become tags.
// Without an initialized client this is a no-op.
func CaptureError(ctx context.Context, err error, tags ...string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for i := 0; i+1 < len(tags); i += 2 {
			scope.SetTag(tags[i], tags[i+1])
		}
		hub.CaptureException(err)
	})
}
