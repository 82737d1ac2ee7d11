// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"image"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusReady      Status = "READY"
	StatusFailed     Status = "FAILED"
)

var StatusMap = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusReady:      true,
	StatusFailed:     true,
}

// JobOutcome - каким завершился один джоб для батч-саммари
type JobOutcome string

const (
	OutcomeCompleted JobOutcome = "COMPLETED"
	OutcomeSkipped   JobOutcome = "SKIPPED"
	OutcomeFailed    JobOutcome = "FAILED"
)

//---------------------

// ImageJob - одна единица работы, собирается парсером из входящей записи и дальше не меняется
type ImageJob struct {
	PhotoID    string `json:"photoId"`
	StorageKey string `json:"storageKey"`
	OwnerID    string `json:"ownerId"`
}

// CanonicalImage - декодированный растр с уже применённой EXIF-ориентацией,
// живет только внутри одного джоба
type CanonicalImage struct {
	Raster       image.Image
	Width        int
	Height       int
	SourceFormat string
	ByteSize     int64
}

// RenditionSpec - декларативная цель для одной рендиции
type RenditionSpec struct {
	TargetWidth int
	Quality     int
}

type RenditionResult struct {
	TargetWidth  int    `json:"targetWidth"`
	ActualWidth  int    `json:"width"`
	ActualHeight int    `json:"height"`
	StorageKey   string `json:"storageKey"`
	ByteSize     int    `json:"sizeBytes"`
}

type Label struct {
	Name        string   `json:"name"`
	Confidence  float64  `json:"confidence"`
	ParentNames []string `json:"parents,omitempty"`
}

// ProcessingResult - терминальная запись одного джоба, после передачи в
// персистенс/нотификатор не мутируется
type ProcessingResult struct {
	PhotoID      string            `json:"photoId"`
	Status       JobOutcome        `json:"status"`
	ThumbnailKey string            `json:"thumbnailKey,omitempty"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	SizeBytes    int64             `json:"sizeBytes,omitempty"`
	Format       string            `json:"format,omitempty"`
	Renditions   []RenditionResult `json:"versions"`
	Tags         StringSlice       `json:"tags"`
	LabelCount   int               `json:"labelCount"`
	ErrorMessage string            `json:"error,omitempty"`
}

//-------------------

// InboundRecord - одна непрозрачная запись из транспорта (HTTP-батч или кафка)
type InboundRecord struct {
	MessageID string          `json:"messageId"`
	Body      json.RawMessage `json:"body"`
}

type RecordError struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// BatchSummary - агрегат по одному вызову диспетчера, не персистится
type BatchSummary struct {
	StatusCode int                `json:"statusCode"`
	Processed  int                `json:"processed"`
	Failed     int                `json:"failed"`
	Results    []ProcessingResult `json:"results"`
	Errors     []RecordError      `json:"errors"`
}

// ------------------

var (
	ErrMalformedKey        error = errors.New("storage key has unexpected shape")         // parse, not retryable
	ErrMissingFields       error = errors.New("required fields missing in message")       // parse, not retryable
	ErrUnknownShape        error = errors.New("inbound record matches no known shape")    // parse, not retryable
	ErrDecode              error = errors.New("image bytes can not be decoded")           // job fails
	ErrInvalidParameter    error = errors.New("invalid rendition parameters")             // fails fast before I/O
	ErrAllRenditionsFailed error = errors.New("all rendition targets failed")             // job fails
	ErrUpstream            error = errors.New("upstream service call failed")             // job fails
	ErrNotification        error = errors.New("completion notification failed")           // logged, swallowed
	ErrPhotoNotFound       error = errors.New("photo record not found in metadata store") // treated as first delivery
	ErrBlobNotFound        error = errors.New("object not found in blob store")
)

//--------------------

const (
	CTypeJPEG = "image/jpeg"
	CTypeWebP = "image/webp"
)

//--------------------

// StringSlice - []string в JSONB-колонку и обратно
type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal StringSlice to JSONB: %w", err)
	}

	return res, nil
}
