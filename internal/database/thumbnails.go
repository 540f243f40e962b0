package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/collection"
	"colsync/internal/model"
)

// SQLiteThumbnailStore keeps thumbnails in the catalog file, keyed by
// (unique hash, file size). Several identities may share one thumbnail.
type SQLiteThumbnailStore struct {
	db *sql.DB
}

// NewSQLiteThumbnailStore uses the connection of an open catalog.
func NewSQLiteThumbnailStore(catalog *SQLiteCatalog) *SQLiteThumbnailStore {
	return &SQLiteThumbnailStore{db: catalog.DB()}
}

func (t *SQLiteThumbnailStore) exec(b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return t.db.Exec(query, args...)
}

func (t *SQLiteThumbnailStore) FindByHash(uniqueHash string, fileSize int64) (int64, error) {
	query, args, err := psql.Select("thumbnail").From("unique_hashes").
		Where(sq.Eq{"unique_hash": uniqueHash, "file_size": fileSize}).ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := t.db.QueryRow(query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("finding thumbnail: %w", err)
	}
	return id, nil
}

func (t *SQLiteThumbnailStore) InsertUniqueHash(uniqueHash string, fileSize int64, thumbnailID int64) error {
	_, err := t.exec(psql.Insert("unique_hashes").Options("OR REPLACE").
		Columns("unique_hash", "file_size", "thumbnail").Values(uniqueHash, fileSize, thumbnailID))
	if err != nil {
		return fmt.Errorf("linking thumbnail %d: %w", thumbnailID, err)
	}
	return nil
}

func (t *SQLiteThumbnailStore) ReplaceUniqueHash(oldHash string, oldSize int64, newHash string, newSize int64) error {
	_, err := t.exec(sq.Expr("UPDATE OR REPLACE unique_hashes SET unique_hash = ?, file_size = ? WHERE unique_hash = ? AND file_size = ?",
		newHash, newSize, oldHash, oldSize))
	if err != nil {
		return fmt.Errorf("re-keying thumbnail: %w", err)
	}
	return nil
}

func (t *SQLiteThumbnailStore) UpdateModificationDate(thumbnailID int64, modified time.Time) error {
	_, err := t.exec(psql.Update("thumbnails").Set("modification_date", nullTime(modified)).Where(sq.Eq{"id": thumbnailID}))
	if err != nil {
		return fmt.Errorf("updating thumbnail %d: %w", thumbnailID, err)
	}
	return nil
}

// InsertThumbnail stores a rendered thumbnail under one content identity.
func (t *SQLiteThumbnailStore) InsertThumbnail(uniqueHash string, fileSize int64, thumb *model.Thumbnail) (int64, error) {
	tx, err := t.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := psql.Insert("thumbnails").
		Columns("modification_date", "width", "height", "data").
		Values(nullTime(thumb.ModificationDate), thumb.Width, thumb.Height, thumb.Data).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting thumbnail: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	query, args, err = psql.Insert("unique_hashes").Options("OR REPLACE").
		Columns("unique_hash", "file_size", "thumbnail").Values(uniqueHash, fileSize, id).ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(query, args...); err != nil {
		return 0, fmt.Errorf("linking thumbnail: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing thumbnail: %w", err)
	}
	thumb.ID = id
	return id, nil
}

// GetThumbnail returns the thumbnail for a content identity, or nil.
func (t *SQLiteThumbnailStore) GetThumbnail(uniqueHash string, fileSize int64) (*model.Thumbnail, error) {
	query, args, err := psql.Select("t.id", "t.modification_date", "t.width", "t.height", "t.data").
		From("thumbnails t").Join("unique_hashes u ON u.thumbnail = t.id").
		Where(sq.Eq{"u.unique_hash": uniqueHash, "u.file_size": fileSize}).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		th       model.Thumbnail
		modified sql.NullInt64
	)
	if err := t.db.QueryRow(query, args...).Scan(&th.ID, &modified, &th.Width, &th.Height, &th.Data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting thumbnail: %w", err)
	}
	th.ModificationDate = fromNullTime(modified)
	return &th, nil
}

var _ collection.ThumbnailStore = (*SQLiteThumbnailStore)(nil)
