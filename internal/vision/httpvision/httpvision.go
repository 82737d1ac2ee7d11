// Package httpvision is an HTTP adapter for the external label-detection service
package httpvision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type Client struct {
	baseURL string
	http    *http.Client
	Retries retry.Strategy
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		Retries: retry.Strategy{Attempts: 3, Delay: time.Second, Backoff: 2},
	}
}

type detectRequest struct {
	StorageKey    string  `json:"storageKey"`
	MinConfidence float64 `json:"minConfidence"`
	MaxLabels     int     `json:"maxLabels"`
}

type detectResponse struct {
	Labels []model.Label `json:"labels"`
}

func (c *Client) DetectLabels(ctx context.Context, storageKey string, minConfidence float64, maxLabels int) ([]model.Label, error) {
	payload, err := json.Marshal(detectRequest{
		StorageKey:    storageKey,
		MinConfidence: minConfidence,
		MaxLabels:     maxLabels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detect-labels request: %w", err)
	}

	var labels []model.Label
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/detect-labels", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer closeBody(resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("vision service returned status %d", resp.StatusCode)
		}

		var body detectResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		labels = body.Labels
		return nil
	}

	if err := doWithStrategy(ctx, c.Retries, attempt); err != nil {
		return nil, fmt.Errorf("%w: detect labels for %q: %v", model.ErrUpstream, storageKey, err)
	}

	return labels, nil
}

// doWithStrategy - ретраим по стратегии, контекст обрывает ожидание между попытками
func doWithStrategy(ctx context.Context, strat retry.Strategy, fn func() error) error {
	delay := strat.Delay
	var err error

	for i := 0; i < strat.Attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == strat.Attempts-1 {
			break
		}
		zlog.Logger.Warn().Err(err).Msgf("Vision call failed, retrying in %v...", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * strat.Backoff)
	}
	return err
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		zlog.Logger.Warn().Err(err).Msg("Failed to close response body")
	}
}
