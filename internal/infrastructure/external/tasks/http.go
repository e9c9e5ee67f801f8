package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/johnquangdev/meeting-colleague/pkg/jobcontext"
)

// StatusError is a non-2xx answer from a tracker API
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Body)
}

func newRetryPolicy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 20 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx)
}

// postJSON sends body and decodes a JSON answer into out (when non-nil).
// Transient transport errors and 5xx/429 answers are retried; everything else is permanent.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", provider, err)
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			if !jobcontext.IsRetryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			statusErr := &StatusError{Provider: provider, Status: resp.StatusCode, Body: string(snippet)}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		if out == nil {
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s response: %w", provider, err))
		}
		return nil
	}

	return backoff.Retry(op, newRetryPolicy(ctx))
}
