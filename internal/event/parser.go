// Package event normalizes heterogeneous inbound message shapes into one ImageJob
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rapidphoto/pipeline/internal/model"
)

const storageEventSource = "object-storage"

// storageNotification - прямое уведомление от объектного хранилища
type storageNotification struct {
	Records []struct {
		EventSource string `json:"eventSource"`
		Storage     struct {
			Bucket string `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"storage"`
	} `json:"Records"`
}

// queueEnvelope - конверт очереди, внутри Message лежит storageNotification одним уровнем глубже
type queueEnvelope struct {
	Message string `json:"Message"`
}

// directMessage - кастомное сообщение от бекенда с явными полями
type directMessage struct {
	PhotoID    string `json:"photoId"`
	UploadID   string `json:"uploadId"`
	StorageKey string `json:"storageKey"`
	OwnerID    string `json:"ownerId"`
}

// Parse resolves one opaque record body into an ImageJob. Resolvers are tried
// in a fixed priority order, first match wins. Pure, no I/O.
func Parse(body []byte) (*model.ImageJob, error) {
	if job, ok, err := resolveStorageEvent(body); ok {
		return job, err
	}
	if job, ok, err := resolveEnvelope(body); ok {
		return job, err
	}
	if job, ok, err := resolveDirect(body); ok {
		return job, err
	}
	return nil, model.ErrUnknownShape
}

// resolveStorageEvent - shape 1. Второе возвращаемое значение говорит что
// форма распознана и дальше резолверы пробовать не надо.
func resolveStorageEvent(body []byte) (*model.ImageJob, bool, error) {
	var note storageNotification
	if err := json.Unmarshal(body, &note); err != nil {
		return nil, false, nil
	}
	if len(note.Records) == 0 || note.Records[0].EventSource != storageEventSource {
		return nil, false, nil
	}

	job, err := jobFromKey(note.Records[0].Storage.Object.Key)
	return job, true, err
}

// resolveEnvelope - shape 2: разворачиваем один уровень и запускаем shape 1 на содержимом
func resolveEnvelope(body []byte) (*model.ImageJob, bool, error) {
	var env queueEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		return nil, false, nil
	}

	job, ok, err := resolveStorageEvent([]byte(env.Message))
	if !ok {
		return nil, false, nil
	}
	return job, true, err
}

// resolveDirect - shape 3: любой JSON-объект, не распознанный первыми двумя
// резолверами, считается прямым сообщением и требует все три поля
func resolveDirect(body []byte) (*model.ImageJob, bool, error) {
	var msg directMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, false, nil
	}

	photoID := msg.PhotoID
	if photoID == "" {
		photoID = msg.UploadID
	}
	if photoID == "" || msg.StorageKey == "" || msg.OwnerID == "" {
		return nil, true, fmt.Errorf("%w: photoId=%q storageKey=%q ownerId=%q", model.ErrMissingFields, photoID, msg.StorageKey, msg.OwnerID)
	}

	return &model.ImageJob{PhotoID: photoID, StorageKey: msg.StorageKey, OwnerID: msg.OwnerID}, true, nil
}

// jobFromKey extracts {ownerId, photoId} from a key of the fixed shape
// originals/{ownerId}/{photoId}[.ext]. The key is URL-decoded first.
func jobFromKey(rawKey string) (*model.ImageJob, error) {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable key %q", model.ErrMalformedKey, rawKey)
	}

	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0]+"/" != model.OriginalsPrefix {
		return nil, fmt.Errorf("%w: %q", model.ErrMalformedKey, key)
	}

	ownerID := parts[1]
	photoID := strings.SplitN(parts[2], ".", 2)[0] // отрезаем расширение если есть
	if ownerID == "" || photoID == "" {
		return nil, fmt.Errorf("%w: %q", model.ErrMalformedKey, key)
	}

	return &model.ImageJob{PhotoID: photoID, StorageKey: key, OwnerID: ownerID}, nil
}

// IsParseError reports whether err belongs to the parse-failure class
// (not retryable, surfaced per-record).
func IsParseError(err error) bool {
	return errors.Is(err, model.ErrMalformedKey) ||
		errors.Is(err, model.ErrMissingFields) ||
		errors.Is(err, model.ErrUnknownShape)
}
