package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateImage inserts a newly-downloaded image's metadata. DownloadURL is
// unique: inserting a duplicate returns a uniqueness error, so callers (see
// imageproc) look a re-discovered image up by DownloadURL first.
func (s *Store) CreateImage(ctx context.Context, img Image) (Image, error) {
	err := s.Named(ctx, "CreateImage", func(ctx context.Context) error {
		now := Now()
		img.ID = ids.New()
		img.CreatedAt = now
		img.UpdatedAt = now

		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO images (
				id, source_id, website_url, download_url, checksum, width, height,
				aspect_ratio, filesize, format, nsfw, title, author, author_url,
				source_created_at, created_at, updated_at
			) VALUES (
				:id, :source_id, :website_url, :download_url, :checksum, :width, :height,
				:aspect_ratio, :filesize, :format, :nsfw, :title, :author, :author_url,
				:source_created_at, :created_at, :updated_at
			)`, img)
		return translateWriteErr("image", err)
	})
	return img, err
}

// GetImage fetches an image by ID.
func (s *Store) GetImage(ctx context.Context, id string) (Image, error) {
	var img Image
	err := s.Named(ctx, "GetImage", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &img, "SELECT * FROM images WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("image", "image "+id+" not found")
		}
		return err
	})
	return img, err
}

// ImageByDownloadURL fetches an image by its unique download URL, the
// de-duplication key a source run checks before re-downloading.
func (s *Store) ImageByDownloadURL(ctx context.Context, downloadURL string) (Image, error) {
	var img Image
	err := s.Named(ctx, "ImageByDownloadURL", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &img, "SELECT * FROM images WHERE download_url = ?", downloadURL)
		if err == sql.ErrNoRows {
			return errs.NotFound("image", "no image with that download url")
		}
		return err
	})
	return img, err
}

// ImagePage is one page of a cursor-paginated image listing.
type ImagePage struct {
	Images     []Image
	NextCursor string // empty when there is no further page
}

// cursor encodes (createdAt epoch millis, id) so pagination stays stable
// under concurrent inserts, per spec §6's ordering requirement.
func encodeCursor(t EpochTime, id string) string {
	return fmt.Sprintf("%d_%s", t.UnixMilli(), id)
}

func decodeCursor(cursor string) (int64, string, error) {
	idx := strings.LastIndex(cursor, "_")
	if idx < 0 {
		return 0, "", errs.Validation("malformed cursor")
	}
	ms, err := strconv.ParseInt(cursor[:idx], 10, 64)
	if err != nil {
		return 0, "", errs.Validation("malformed cursor")
	}
	return ms, cursor[idx+1:], nil
}

// ListImages returns a page of images ordered (created_at DESC, id DESC),
// optionally scoped to a source, starting after cursor.
func (s *Store) ListImages(ctx context.Context, sourceID, cursor string, pageSize int) (ImagePage, error) {
	var page ImagePage
	err := s.Named(ctx, "ListImages", func(ctx context.Context) error {
		query := "SELECT * FROM images WHERE 1=1"
		args := []any{}

		if sourceID != "" {
			query += " AND source_id = ?"
			args = append(args, sourceID)
		}
		if cursor != "" {
			ms, id, err := decodeCursor(cursor)
			if err != nil {
				return err
			}
			query += " AND (created_at < ? OR (created_at = ? AND id < ?))"
			cursorTime := NewEpochTime(time.UnixMilli(ms))
			args = append(args, cursorTime, cursorTime, id)
		}
		query += " ORDER BY created_at DESC, id DESC LIMIT ?"
		args = append(args, pageSize+1)

		var rows []Image
		if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return err
		}

		if len(rows) > pageSize {
			last := rows[pageSize-1]
			page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
			rows = rows[:pageSize]
		}
		page.Images = rows
		return nil
	})
	return page, err
}

// DeleteImagesOlderThan deletes images (and, via ON DELETE SET NULL, detaches
// their device_images rows) with created_at before cutoff, keeping at least
// keepPerDevice of each device's most recent materializations. It is the
// supplemented retention operation described in SPEC_FULL.md.
func (s *Store) DeleteImagesOlderThan(ctx context.Context, cutoff time.Time, keepPerDevice int) (int64, error) {
	var deleted int64
	err := s.Named(ctx, "DeleteImagesOlderThan", func(ctx context.Context) error {
		var keepIDs []string
		if keepPerDevice > 0 {
			if err := s.db.SelectContext(ctx, &keepIDs, `
				SELECT image_id FROM (
					SELECT di.image_id, ROW_NUMBER() OVER (
						PARTITION BY di.device_id ORDER BY i.created_at DESC
					) AS rn
					FROM device_images di
					JOIN images i ON i.id = di.image_id
				) ranked WHERE rn <= ?`, keepPerDevice); err != nil {
				return err
			}
		}

		query := "DELETE FROM images WHERE created_at < ?"
		args := []any{NewEpochTime(cutoff)}
		if len(keepIDs) > 0 {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepIDs)), ",")
			query += " AND id NOT IN (" + placeholders + ")"
			for _, id := range keepIDs {
				args = append(args, id)
			}
		}

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}
