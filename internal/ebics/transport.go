package ebics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"git.taler.net/nexus/internal/domain/shared"
	"github.com/cenkalti/backoff/v4"
)

// Transport posts a raw EBICS XML document to a bank URL and returns
// the raw response body. It is the sole network boundary of the
// engine, making the orchestrators in download.go/upload.go testable
// against a fake.
type Transport interface {
	Post(ctx context.Context, url string, body []byte) ([]byte, error)
}

// HTTPTransport is the production Transport: a plain HTTPS POST with
// Content-Type: text/xml, retried with exponential backoff on
// transport-level failures (spec §4.2's "Transport failure ... is
// retryable with backoff", grounded on getAlby-lndhub.go's
// rabbitmq/amqp.go reconnect loop, the pack's one cenkalti/backoff
// user).
type HTTPTransport struct {
	client  *http.Client
	logger  *slog.Logger
	retries uint64
}

// NewHTTPTransport builds a transport with the given per-request
// timeout (spec §5: default 60s) and retry budget (spec §7: 3 attempts).
func NewHTTPTransport(timeout time.Duration, logger *slog.Logger) *HTTPTransport {
	return &HTTPTransport{
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		retries: 2, // WithMaxRetries counts retries after the first try: 3 attempts in all
	}
}

func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var respBody []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build ebics request: %w", err))
		}
		req.Header.Set("Content-Type", "text/xml; charset=UTF-8")

		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.Warn("ebics transport error, retrying", "url", url, "error", err)
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("bank returned http %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(shared.ProtocolError{
				HTTPStatus: resp.StatusCode,
				Reason:     fmt.Sprintf("bank returned http %d", resp.StatusCode),
			})
		}
		respBody = data
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), t.retries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, fmt.Errorf("ebics transport failed: %w", err)
	}
	return respBody, nil
}
