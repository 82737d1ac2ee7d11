package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func testResult() *model.ProcessingResult {
	return &model.ProcessingResult{
		PhotoID:      "p1",
		Status:       "COMPLETED",
		ThumbnailKey: "thumbnails/u1/p1.jpg",
		Width:        1920,
		Height:       1080,
		Tags:         model.StringSlice{"Dog", "Pet"},
	}
}

func TestNotify(t *testing.T) {
	var gotPath, gotSecret string
	var gotBody model.ProcessingResult

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get("X-Pipeline-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "hush", time.Second)

	err := n.Notify(context.Background(), "p1", testResult())
	require.NoError(t, err)
	require.Equal(t, "/api/v1/internal/photos/p1/processing-complete", gotPath)
	require.Equal(t, "hush", gotSecret)
	require.Equal(t, "p1", gotBody.PhotoID)
	require.Equal(t, model.StringSlice{"Dog", "Pet"}, gotBody.Tags)
}

func TestNotify_BackendDown(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "hush", time.Second)
	n.Retries = retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 1}

	err := n.Notify(context.Background(), "p1", testResult())
	require.ErrorIs(t, err, model.ErrNotification)
	require.Equal(t, int32(3), calls.Load())
}

func TestNotify_RecoversAfterRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, "hush", time.Second)
	n.Retries = retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 1}

	err := n.Notify(context.Background(), "p1", testResult())
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}
