package photopg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

const (
	renditionTypeWebP      = "WEBP"
	renditionTypeThumbnail = "THUMBNAIL"
)

type PostgresRepo struct {
	DB *dbpg.DB
}

func (p PostgresRepo) GetStatus(ctx context.Context, photoID string) (model.Status, error) {
	query := `SELECT status FROM photos WHERE id = $1`

	var status model.Status
	err := p.DB.QueryRowContext(ctx, query, photoID).Scan(&status)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return "", model.ErrPhotoNotFound
		default:
			return "", err
		}
	}
	return status, nil
}

func (p PostgresRepo) SetStatus(ctx context.Context, photoID string, status model.Status) error {
	query := `UPDATE photos SET status = $1, updated_at = now() WHERE id = $2`
	res, err := p.DB.ExecContext(ctx, query, status, photoID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p PostgresRepo) UpdateResult(ctx context.Context, photoID string, r *model.ProcessingResult) error {
	query := `UPDATE photos
	SET status = $1,
		thumbnail_key = $2,
		width = $3,
		height = $4,
		size_bytes = $5,
		format = $6,
		tags = $7,
		processed_at = now()
	WHERE id = $8`

	res, err := p.DB.ExecContext(ctx, query,
		model.StatusReady,
		r.ThumbnailKey,
		r.Width,
		r.Height,
		r.SizeBytes,
		r.Format,
		r.Tags,
		photoID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// строки может еще не быть на первой доставке - артефакты уже
		// в сторадже, джоб считается успешным
		zlog.Logger.Warn().Str("photo_id", photoID).Msg("Photo row absent, metadata update skipped")
	}
	return nil
}

func (p PostgresRepo) MarkFailed(ctx context.Context, photoID string, message string) error {
	query := `UPDATE photos
	SET status = $1,
		error_message = $2,
		processed_at = now()
	WHERE id = $3`

	res, err := p.DB.ExecContext(ctx, query, model.StatusFailed, message, photoID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SaveRenditions upserts one row per derived artifact, thumbnail included, so
// that a redelivered photo overwrites rows instead of duplicating them.
func (p PostgresRepo) SaveRenditions(ctx context.Context, photoID string, renditions []model.RenditionResult, thumbnailKey string) error {
	query := `INSERT INTO photo_renditions (photo_id, rendition_type, target_width, width, height, storage_key, size_bytes)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (photo_id, rendition_type, target_width)
	DO UPDATE SET storage_key = EXCLUDED.storage_key, width = EXCLUDED.width, height = EXCLUDED.height, size_bytes = EXCLUDED.size_bytes, created_at = now()`

	if _, err := p.DB.ExecContext(ctx, query, photoID, renditionTypeThumbnail, 0, 0, 0, thumbnailKey, 0); err != nil {
		return err
	}

	for _, r := range renditions {
		if _, err := p.DB.ExecContext(ctx, query, photoID, renditionTypeWebP, r.TargetWidth, r.ActualWidth, r.ActualHeight, r.StorageKey, r.ByteSize); err != nil {
			return err
		}
	}
	return nil
}

// SaveLabels replaces the label rows of the photo; tags on the photos row are
// written by UpdateResult.
func (p PostgresRepo) SaveLabels(ctx context.Context, photoID string, labels []model.Label, tags []string) error {
	if _, err := p.DB.ExecContext(ctx, `DELETE FROM photo_labels WHERE photo_id = $1`, photoID); err != nil {
		return err
	}

	tagged := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagged[t] = true
	}

	query := `INSERT INTO photo_labels (photo_id, name, confidence, is_tag)
	VALUES ($1, $2, $3, $4)`
	for _, l := range labels {
		if _, err := p.DB.ExecContext(ctx, query, photoID, l.Name, l.Confidence, tagged[l.Name]); err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return model.ErrPhotoNotFound
	}
	return nil
}
