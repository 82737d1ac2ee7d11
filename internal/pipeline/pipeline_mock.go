package pipeline

import (
	"context"
	"sync"

	"github.com/rapidphoto/pipeline/internal/model"
)

// mockRepo реализует repository.PhotoRepo через подменяемые функции
type mockRepo struct {
	GetStatusFunc      func(ctx context.Context, photoID string) (model.Status, error)
	SetStatusFunc      func(ctx context.Context, photoID string, status model.Status) error
	UpdateResultFunc   func(ctx context.Context, photoID string, res *model.ProcessingResult) error
	MarkFailedFunc     func(ctx context.Context, photoID string, message string) error
	SaveRenditionsFunc func(ctx context.Context, photoID string, renditions []model.RenditionResult, thumbnailKey string) error
	SaveLabelsFunc     func(ctx context.Context, photoID string, labels []model.Label, tags []string) error
}

func (m *mockRepo) GetStatus(ctx context.Context, photoID string) (model.Status, error) {
	if m.GetStatusFunc == nil {
		return "", model.ErrPhotoNotFound
	}
	return m.GetStatusFunc(ctx, photoID)
}

func (m *mockRepo) SetStatus(ctx context.Context, photoID string, status model.Status) error {
	if m.SetStatusFunc == nil {
		return nil
	}
	return m.SetStatusFunc(ctx, photoID, status)
}

func (m *mockRepo) UpdateResult(ctx context.Context, photoID string, res *model.ProcessingResult) error {
	if m.UpdateResultFunc == nil {
		return nil
	}
	return m.UpdateResultFunc(ctx, photoID, res)
}

func (m *mockRepo) MarkFailed(ctx context.Context, photoID string, message string) error {
	if m.MarkFailedFunc == nil {
		return nil
	}
	return m.MarkFailedFunc(ctx, photoID, message)
}

func (m *mockRepo) SaveRenditions(ctx context.Context, photoID string, renditions []model.RenditionResult, thumbnailKey string) error {
	if m.SaveRenditionsFunc == nil {
		return nil
	}
	return m.SaveRenditionsFunc(ctx, photoID, renditions, thumbnailKey)
}

func (m *mockRepo) SaveLabels(ctx context.Context, photoID string, labels []model.Label, tags []string) error {
	if m.SaveLabelsFunc == nil {
		return nil
	}
	return m.SaveLabelsFunc(ctx, photoID, labels, tags)
}

// mockStorage запоминает загруженные объекты; Put потокобезопасен, потому что
// рендиции грузятся из нескольких горутин
type mockStorage struct {
	GetFunc func(ctx context.Context, key string) ([]byte, error)
	PutFunc func(ctx context.Context, key string, contentType string, data []byte) error

	mu   sync.Mutex
	Puts map[string]string // key -> contentType
}

func (m *mockStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc == nil {
		return nil, model.ErrBlobNotFound
	}
	return m.GetFunc(ctx, key)
}

func (m *mockStorage) Put(ctx context.Context, key string, contentType string, data []byte) error {
	if m.PutFunc != nil {
		if err := m.PutFunc(ctx, key, contentType, data); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Puts == nil {
		m.Puts = make(map[string]string)
	}
	m.Puts[key] = contentType
	return nil
}

func (m *mockStorage) PutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Puts)
}

// mockDetector реализует vision.LabelDetector
type mockDetector struct {
	DetectLabelsFunc func(ctx context.Context, storageKey string, minConfidence float64, maxLabels int) ([]model.Label, error)
}

func (m *mockDetector) DetectLabels(ctx context.Context, storageKey string, minConfidence float64, maxLabels int) ([]model.Label, error) {
	if m.DetectLabelsFunc == nil {
		return nil, nil
	}
	return m.DetectLabelsFunc(ctx, storageKey, minConfidence, maxLabels)
}

// mockNotifier реализует notifier.Notifier
type mockNotifier struct {
	NotifyFunc func(ctx context.Context, photoID string, res *model.ProcessingResult) error
}

func (m *mockNotifier) Notify(ctx context.Context, photoID string, res *model.ProcessingResult) error {
	if m.NotifyFunc == nil {
		return nil
	}
	return m.NotifyFunc(ctx, photoID, res)
}
