package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/collection"
)

// Album root operations

func (s *SQLiteCatalog) ListAlbumRoots() ([]*collection.AlbumRoot, error) {
	rows, err := s.query(psql.Select("id", "label", "path", "case_sensitivity", "status").
		From("album_roots").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing album roots: %w", err)
	}
	defer rows.Close()

	var roots []*collection.AlbumRoot
	for rows.Next() {
		r := &collection.AlbumRoot{}
		if err := rows.Scan(&r.ID, &r.Label, &r.Path, &r.CaseSensitivity, &r.Status); err != nil {
			return nil, fmt.Errorf("scanning album root: %w", err)
		}
		roots = append(roots, r)
	}
	return roots, rows.Err()
}

func (s *SQLiteCatalog) AddAlbumRoot(label, path string, caseSensitivity collection.CaseSensitivity) (*collection.AlbumRoot, error) {
	res, err := s.exec(psql.Insert("album_roots").
		Columns("label", "path", "case_sensitivity", "status").
		Values(label, path, caseSensitivity, collection.RootVisible))
	if err != nil {
		return nil, fmt.Errorf("adding album root: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("adding album root: %w", err)
	}
	return &collection.AlbumRoot{
		ID:              id,
		Label:           label,
		Path:            path,
		CaseSensitivity: caseSensitivity,
		Status:          collection.RootVisible,
	}, nil
}

// DeleteAlbumRoot trashes the items of the root's albums, makes the albums
// stale and drops the root.
func (s *SQLiteCatalog) DeleteAlbumRoot(id int64) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		albums := psql.Select("id").From("albums").Where(sq.Eq{"album_root": id})
		albumIDs, err := c.ids(albums)
		if err != nil {
			return fmt.Errorf("listing albums of root %d: %w", id, err)
		}
		itemIDs, err := c.GetItemIDsInAlbums(albumIDs)
		if err != nil {
			return err
		}
		if err := c.RemoveItems(itemIDs); err != nil {
			return err
		}
		for _, albumID := range albumIDs {
			if err := c.MakeStaleAlbum(albumID); err != nil {
				return err
			}
		}
		if _, err := c.exec(psql.Delete("album_roots").Where(sq.Eq{"id": id})); err != nil {
			return fmt.Errorf("deleting album root %d: %w", id, err)
		}
		return nil
	})
}

// Album operations

func (s *SQLiteCatalog) GetAlbumShortInfos() ([]collection.AlbumShortInfo, error) {
	rows, err := s.query(psql.Select("id", "album_root", "relative_path").
		From("albums").Where(sq.NotEq{"album_root": 0}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	defer rows.Close()

	var out []collection.AlbumShortInfo
	for rows.Next() {
		var a collection.AlbumShortInfo
		if err := rows.Scan(&a.ID, &a.AlbumRootID, &a.RelativePath); err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteCatalog) GetAlbum(id int64) (*collection.Album, error) {
	var (
		a                  collection.Album
		date, modification sql.NullInt64
	)
	err := s.get(psql.Select("id", "album_root", "relative_path", "date", "caption", "collection", "modification_date").
		From("albums").Where(sq.Eq{"id": id}),
		&a.ID, &a.AlbumRootID, &a.RelativePath, &date, &a.Caption, &a.Collection, &modification)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting album %d: %w", id, err)
	}
	a.Date = fromNullTime(date)
	a.ModificationDate = fromNullTime(modification)
	return &a, nil
}

func (s *SQLiteCatalog) GetAlbumForPath(albumRootID int64, relativePath string) (int64, error) {
	id, err := s.getID(psql.Select("id").From("albums").
		Where(sq.Eq{"album_root": albumRootID, "relative_path": relativePath}))
	if err != nil {
		return 0, fmt.Errorf("finding album %s: %w", relativePath, err)
	}
	return id, nil
}

func (s *SQLiteCatalog) AddAlbum(albumRootID int64, relativePath string, date time.Time) (int64, error) {
	_, err := s.exec(psql.Insert("albums").
		Columns("album_root", "relative_path", "date").
		Values(albumRootID, relativePath, nullTime(date)).
		Suffix("ON CONFLICT (album_root, relative_path) DO UPDATE SET date = excluded.date"))
	if err != nil {
		return 0, fmt.Errorf("adding album %s: %w", relativePath, err)
	}
	return s.GetAlbumForPath(albumRootID, relativePath)
}

func (s *SQLiteCatalog) CopyAlbumProperties(srcAlbumID, dstAlbumID int64) error {
	_, err := s.exec(psql.Update("albums").
		Set("date", sq.Expr("(SELECT date FROM albums WHERE id = ?)", srcAlbumID)).
		Set("caption", sq.Expr("(SELECT caption FROM albums WHERE id = ?)", srcAlbumID)).
		Set("collection", sq.Expr("(SELECT collection FROM albums WHERE id = ?)", srcAlbumID)).
		Where(sq.Eq{"id": dstAlbumID}))
	if err != nil {
		return fmt.Errorf("copying album properties %d -> %d: %w", srcAlbumID, dstAlbumID, err)
	}
	return nil
}

func (s *SQLiteCatalog) RenameAlbum(albumID, newAlbumRootID int64, newRelativePath string) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		_, err := c.exec(psql.Delete("albums").Where(sq.And{
			sq.Eq{"album_root": newAlbumRootID, "relative_path": newRelativePath},
			sq.NotEq{"id": albumID},
		}))
		if err != nil {
			return fmt.Errorf("clearing rename destination: %w", err)
		}
		_, err = c.exec(psql.Update("albums").
			Set("album_root", newAlbumRootID).
			Set("relative_path", newRelativePath).
			Where(sq.Eq{"id": albumID}))
		if err != nil {
			return fmt.Errorf("renaming album %d: %w", albumID, err)
		}
		return nil
	})
}

func (s *SQLiteCatalog) SetAlbumModificationDate(albumID int64, modified time.Time) error {
	_, err := s.exec(psql.Update("albums").Set("modification_date", nullTime(modified)).Where(sq.Eq{"id": albumID}))
	if err != nil {
		return fmt.Errorf("setting album modification date: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) SetAlbumDate(albumID int64, date time.Time) error {
	_, err := s.exec(psql.Update("albums").Set("date", nullTime(date)).Where(sq.Eq{"id": albumID}))
	if err != nil {
		return fmt.Errorf("setting album date: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) GetAlbumModificationMap(albumRootID int64) (map[string]time.Time, error) {
	rows, err := s.query(psql.Select("relative_path", "modification_date").
		From("albums").Where(sq.Eq{"album_root": albumRootID}))
	if err != nil {
		return nil, fmt.Errorf("reading album modification dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			path     string
			modified sql.NullInt64
		)
		if err := rows.Scan(&path, &modified); err != nil {
			return nil, err
		}
		out[path] = fromNullTime(modified)
	}
	return out, rows.Err()
}

func (s *SQLiteCatalog) GetAlbumAndSubalbumsForPath(albumRootID int64, relativePath string) ([]int64, error) {
	b := psql.Select("id").From("albums").Where(sq.Eq{"album_root": albumRootID}).OrderBy("relative_path")
	if relativePath != collection.RootAlbumPath {
		prefix := relativePath + "/"
		b = b.Where(sq.Or{
			sq.Eq{"relative_path": relativePath},
			sq.Expr("substr(relative_path, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix),
		})
	}
	ids, err := s.ids(b)
	if err != nil {
		return nil, fmt.Errorf("listing sub-albums of %s: %w", relativePath, err)
	}
	return ids, nil
}

// MakeStaleAlbum moves an album to root 0. The path is prefixed with the
// album id to keep it unique among stale albums.
func (s *SQLiteCatalog) MakeStaleAlbum(albumID int64) error {
	_, err := s.exec(psql.Update("albums").
		Set("album_root", 0).
		Set("relative_path", sq.Expr("CAST(id AS TEXT) || ':' || relative_path")).
		Where(sq.Eq{"id": albumID}))
	if err != nil {
		return fmt.Errorf("making album %d stale: %w", albumID, err)
	}
	return nil
}

func (s *SQLiteCatalog) DeleteStaleAlbums() error {
	if _, err := s.exec(psql.Delete("albums").Where(sq.Eq{"album_root": 0})); err != nil {
		return fmt.Errorf("deleting stale albums: %w", err)
	}
	return nil
}

func (s *SQLiteCatalog) GetNumberOfItemsInAlbum(albumID int64) (int, error) {
	var n int
	err := s.get(psql.Select("COUNT(*)").From("items").
		Where(sq.Eq{"album": albumID, "status": collection.StatusVisible}), &n)
	if err != nil {
		return 0, fmt.Errorf("counting items of album %d: %w", albumID, err)
	}
	return n, nil
}
