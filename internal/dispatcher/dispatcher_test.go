package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/stretchr/testify/require"
)

// mockProcessor реализует JobProcessor через подменяемую функцию
type mockProcessor struct {
	mu        sync.Mutex
	processed []string
	fn        func(ctx context.Context, job *model.ImageJob) (*model.ProcessingResult, error)
}

func (m *mockProcessor) Process(ctx context.Context, job *model.ImageJob) (*model.ProcessingResult, error) {
	m.mu.Lock()
	m.processed = append(m.processed, job.PhotoID)
	m.mu.Unlock()
	if m.fn == nil {
		return &model.ProcessingResult{PhotoID: job.PhotoID, Status: model.OutcomeCompleted}, nil
	}
	return m.fn(ctx, job)
}

func directRecord(t *testing.T, messageID, photoID string) model.InboundRecord {
	t.Helper()
	body, err := json.Marshal(map[string]string{
		"photoId":    photoID,
		"storageKey": "originals/u1/" + photoID + ".jpg",
		"ownerId":    "u1",
	})
	require.NoError(t, err)
	return model.InboundRecord{MessageID: messageID, Body: body}
}

func TestProcessBatch_AllSucceed(t *testing.T) {
	proc := &mockProcessor{}
	d := New(proc, 2)

	records := []model.InboundRecord{
		directRecord(t, "m1", "p1"),
		directRecord(t, "m2", "p2"),
		directRecord(t, "m3", "p3"),
	}

	summary := d.ProcessBatch(context.Background(), records)

	require.Equal(t, http.StatusOK, summary.StatusCode)
	require.Equal(t, 3, summary.Processed)
	require.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 3)
	require.Empty(t, summary.Errors)
	require.ElementsMatch(t, []string{"p1", "p2", "p3"}, proc.processed)
}

func TestProcessBatch_ParseFailureIsolated(t *testing.T) {
	proc := &mockProcessor{}
	d := New(proc, 2)

	records := []model.InboundRecord{
		directRecord(t, "m1", "p1"),
		{MessageID: "m2", Body: json.RawMessage(`{"photoId":"p2"}`)}, // нет storageKey/ownerId
		directRecord(t, "m3", "p3"),
	}

	summary := d.ProcessBatch(context.Background(), records)

	require.Equal(t, http.StatusMultiStatus, summary.StatusCode)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Errors, 1)
	require.Equal(t, "m2", summary.Errors[0].MessageID)
	require.Contains(t, summary.Errors[0].Error, "missing")
	// битая запись не дошла до пайплайна
	require.ElementsMatch(t, []string{"p1", "p3"}, proc.processed)
}

func TestProcessBatch_JobFailureIsolated(t *testing.T) {
	proc := &mockProcessor{
		fn: func(_ context.Context, job *model.ImageJob) (*model.ProcessingResult, error) {
			if job.PhotoID == "p2" {
				return &model.ProcessingResult{PhotoID: "p2", Status: model.OutcomeFailed}, model.ErrDecode
			}
			return &model.ProcessingResult{PhotoID: job.PhotoID, Status: model.OutcomeCompleted}, nil
		},
	}
	d := New(proc, 4)

	records := []model.InboundRecord{
		directRecord(t, "m1", "p1"),
		directRecord(t, "m2", "p2"),
		directRecord(t, "m3", "p3"),
	}

	summary := d.ProcessBatch(context.Background(), records)

	require.Equal(t, http.StatusMultiStatus, summary.StatusCode)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, "m2", summary.Errors[0].MessageID)
}

func TestProcessBatch_Empty(t *testing.T) {
	d := New(&mockProcessor{}, 2)

	summary := d.ProcessBatch(context.Background(), nil)

	require.Equal(t, http.StatusOK, summary.StatusCode)
	require.Zero(t, summary.Processed)
	require.Zero(t, summary.Failed)
	require.Empty(t, summary.Results)
	require.Empty(t, summary.Errors)
}

// порядок результатов соответствует порядку записей даже при параллельной обработке
func TestProcessBatch_PreservesRecordOrder(t *testing.T) {
	proc := &mockProcessor{}
	d := New(proc, 8)

	records := make([]model.InboundRecord, 0, 20)
	want := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		records = append(records, directRecord(t, "m-"+id, "p-"+id))
		want = append(want, "p-"+id)
	}

	summary := d.ProcessBatch(context.Background(), records)

	require.Equal(t, 20, summary.Processed)
	got := make([]string, 0, 20)
	for _, r := range summary.Results {
		got = append(got, r.PhotoID)
	}
	require.Equal(t, want, got)
}
