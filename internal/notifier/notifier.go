// Package notifier delivers the completion callback to the backend API
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const secretHeader = "X-Pipeline-Secret"

// Notifier - контракт completion-колбэка; доставка best-effort, решение
// глотать ошибку принимает оркестратор
type Notifier interface {
	Notify(ctx context.Context, photoID string, res *model.ProcessingResult) error
}

type HTTPNotifier struct {
	backendURL string
	secret     string
	http       *http.Client
	Retries    retry.Strategy
}

func NewHTTPNotifier(backendURL, secret string, timeout time.Duration) *HTTPNotifier {
	return &HTTPNotifier{
		backendURL: backendURL,
		secret:     secret,
		http:       &http.Client{Timeout: timeout},
		Retries:    retry.Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 1.5},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, photoID string, res *model.ProcessingResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("%w: marshal result for %q: %v", model.ErrNotification, photoID, err)
	}

	url := fmt.Sprintf("%s/api/v1/internal/photos/%s/processing-complete", n.backendURL, photoID)

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(secretHeader, n.secret)

		resp, err := n.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				zlog.Logger.Warn().Err(err).Msg("Failed to close notify response body")
			}
		}()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("backend returned status %d", resp.StatusCode)
		}
		return nil
	}

	delay := n.Retries.Delay
	for i := 0; i < n.Retries.Attempts; i++ {
		if err = attempt(); err == nil {
			return nil
		}
		if i == n.Retries.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", model.ErrNotification, ctx.Err())
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * n.Retries.Backoff)
	}

	return fmt.Errorf("%w: notify backend for %q: %v", model.ErrNotification, photoID, err)
}
