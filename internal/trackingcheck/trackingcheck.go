// Package trackingcheck probes the experiment-tracking server before a run
// that wants online logging.
//
// A run that starts online against an unreachable server wastes hours of
// training before anyone notices the missing metrics, so the launcher warns
// up front. The trainer owns tracking; the probe never blocks a launch.
package trackingcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/lavoiems/solo-learn/internal/observability"
)

type Checker struct {
	client *retryablehttp.Client
	logger *observability.CoreLogger
}

func New(logger *observability.CoreLogger) *Checker {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second

	// retryablehttp logs through its own interface; route it to ours.
	client.Logger = slogAdapter{logger}

	return &Checker{client: client, logger: logger}
}

// Probe checks that the tracking server answers at all.
//
// Any HTTP response counts as reachable, including errors: the trainer
// authenticates itself, the launcher only cares whether the host resolves
// and accepts connections.
func (c *Checker) Probe(ctx context.Context, baseURL string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return fmt.Errorf("invalid tracking URL %q: %w", baseURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tracking server %s is unreachable: %w", baseURL, err)
	}
	resp.Body.Close()

	c.logger.Debug(
		"trackingcheck: server reachable",
		"url", baseURL,
		"status", resp.StatusCode,
	)
	return nil
}

// slogAdapter bridges retryablehttp's logger to the CoreLogger.
type slogAdapter struct {
	logger *observability.CoreLogger
}

func (a slogAdapter) Printf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
