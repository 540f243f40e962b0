package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/collection"
)

var itemColumns = []string{"id", "album", "name", "status", "category", "modification_date", "file_size", "unique_hash"}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (collection.ItemScanInfo, error) {
	var (
		info     collection.ItemScanInfo
		album    sql.NullInt64
		modified sql.NullInt64
	)
	err := r.Scan(&info.ID, &album, &info.Name, &info.Status, &info.Category, &modified, &info.FileSize, &info.UniqueHash)
	info.AlbumID = album.Int64
	info.ModificationDate = fromNullTime(modified)
	return info, err
}

var liveStatuses = []collection.ItemStatus{collection.StatusVisible, collection.StatusHidden}

func (s *SQLiteCatalog) GetItemScanInfos(albumID int64) ([]collection.ItemScanInfo, error) {
	rows, err := s.query(psql.Select(itemColumns...).From("items").Where(sq.Eq{"album": albumID}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing items of album %d: %w", albumID, err)
	}
	defer rows.Close()

	var out []collection.ItemScanInfo
	for rows.Next() {
		info, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteCatalog) GetItemScanInfo(id int64) (*collection.ItemScanInfo, error) {
	query, args, err := psql.Select(itemColumns...).From("items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	info, err := scanItem(s.q.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting item %d: %w", id, err)
	}
	return &info, nil
}

func (s *SQLiteCatalog) GetImageID(albumID int64, name string) (int64, error) {
	id, err := s.getID(psql.Select("id").From("items").Where(sq.Eq{"album": albumID, "name": name}))
	if err != nil {
		return 0, fmt.Errorf("finding item %s: %w", name, err)
	}
	return id, nil
}

func (s *SQLiteCatalog) AddItem(info *collection.ItemScanInfo) (int64, error) {
	var id int64
	err := s.inTx(func(c *SQLiteCatalog) error {
		_, err := c.exec(psql.Delete("items").Where(sq.Eq{"album": info.AlbumID, "name": info.Name}))
		if err != nil {
			return fmt.Errorf("replacing item %s: %w", info.Name, err)
		}
		res, err := c.exec(psql.Insert("items").
			Columns("album", "name", "status", "category", "modification_date", "file_size", "unique_hash").
			Values(info.AlbumID, info.Name, info.Status, info.Category, nullTime(info.ModificationDate), info.FileSize, info.UniqueHash))
		if err != nil {
			return fmt.Errorf("adding item %s: %w", info.Name, err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	info.ID = id
	return id, nil
}

func (s *SQLiteCatalog) UpdateItem(info *collection.ItemScanInfo) error {
	_, err := s.exec(psql.Update("items").
		Set("status", info.Status).
		Set("category", info.Category).
		Set("modification_date", nullTime(info.ModificationDate)).
		Set("file_size", info.FileSize).
		Set("unique_hash", info.UniqueHash).
		Where(sq.Eq{"id": info.ID}))
	if err != nil {
		return fmt.Errorf("updating item %d: %w", info.ID, err)
	}
	return nil
}

func (s *SQLiteCatalog) MoveItem(id, albumID int64, name string) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		_, err := c.exec(psql.Delete("items").Where(sq.And{
			sq.Eq{"album": albumID, "name": name},
			sq.NotEq{"id": id},
		}))
		if err != nil {
			return fmt.Errorf("clearing move destination: %w", err)
		}
		_, err = c.exec(psql.Update("items").Set("album", albumID).Set("name", name).Where(sq.Eq{"id": id}))
		if err != nil {
			return fmt.Errorf("moving item %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQLiteCatalog) SetItemStatus(id int64, status collection.ItemStatus) error {
	if _, err := s.exec(psql.Update("items").Set("status", status).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("setting status of item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteCatalog) RemoveItems(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(func(c *SQLiteCatalog) error {
		for _, batch := range batches(ids) {
			_, err := c.exec(psql.Update("items").
				Set("status", collection.StatusTrashed).
				Set("album", nil).
				Where(sq.Eq{"id": batch}))
			if err != nil {
				return fmt.Errorf("removing items: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteCatalog) GetItemIDsInAlbums(albumIDs []int64) ([]int64, error) {
	var out []int64
	for _, batch := range batches(albumIDs) {
		ids, err := s.ids(psql.Select("id").From("items").
			Where(sq.Eq{"album": batch, "status": liveStatuses}).OrderBy("id"))
		if err != nil {
			return nil, fmt.Errorf("listing items of albums: %w", err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

func (s *SQLiteCatalog) GetItemIDsByStatus(status collection.ItemStatus) ([]int64, error) {
	ids, err := s.ids(psql.Select("id").From("items").Where(sq.Eq{"status": status}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("listing %s items: %w", status, err)
	}
	return ids, nil
}

func (s *SQLiteCatalog) FindRemovedItemByHash(uniqueHash string, fileSize int64) (int64, error) {
	if uniqueHash == "" {
		return 0, nil
	}
	id, err := s.getID(psql.Select("id").From("items").
		Where(sq.Eq{"status": collection.StatusTrashed, "unique_hash": uniqueHash, "file_size": fileSize}).
		OrderBy("id DESC").Limit(1))
	if err != nil {
		return 0, fmt.Errorf("finding removed item by hash: %w", err)
	}
	return id, nil
}

func (s *SQLiteCatalog) GetItemIDsByHash(uniqueHash string, fileSize int64) ([]int64, error) {
	if uniqueHash == "" {
		return nil, nil
	}
	ids, err := s.ids(psql.Select("id").From("items").
		Where(sq.Eq{"status": liveStatuses, "unique_hash": uniqueHash, "file_size": fileSize}).OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("finding items by hash: %w", err)
	}
	return ids, nil
}

func locationSelect() sq.SelectBuilder {
	return psql.Select("i.id", "r.id", "r.path", "a.relative_path", "i.name", "i.category", "i.unique_hash", "i.file_size").
		From("items i").
		Join("albums a ON a.id = i.album").
		Join("album_roots r ON r.id = a.album_root")
}

func scanLocation(r rowScanner) (*collection.ItemLocation, error) {
	l := &collection.ItemLocation{}
	err := r.Scan(&l.ItemID, &l.AlbumRootID, &l.RootPath, &l.RelativePath, &l.Name, &l.Category, &l.UniqueHash, &l.FileSize)
	return l, err
}

func (s *SQLiteCatalog) GetItemLocation(id int64) (*collection.ItemLocation, error) {
	query, args, err := locationSelect().Where(sq.Eq{"i.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	l, err := scanLocation(s.q.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("locating item %d: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteCatalog) ListItemLocations() ([]*collection.ItemLocation, error) {
	rows, err := s.query(locationSelect().Where(sq.Eq{"i.status": collection.StatusVisible}).OrderBy("i.id"))
	if err != nil {
		return nil, fmt.Errorf("listing item locations: %w", err)
	}
	defer rows.Close()

	var out []*collection.ItemLocation
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CopyItemAttributes copies user data from src to dst. Existing tags and
// relations of dst are kept; comment, position and history are replaced.
func (s *SQLiteCatalog) CopyItemAttributes(srcID, dstID int64) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		stmts := []sq.Sqlizer{
			psql.Insert("item_tags").Options("OR IGNORE").Columns("item", "tag").
				Select(psql.Select().Column(sq.Expr("?", dstID)).Column("tag").From("item_tags").Where(sq.Eq{"item": srcID})),
			psql.Insert("item_comments").Options("OR REPLACE").Columns("item", "comment").
				Select(psql.Select().Column(sq.Expr("?", dstID)).Column("comment").From("item_comments").Where(sq.Eq{"item": srcID})),
			psql.Insert("item_positions").Options("OR REPLACE").Columns("item", "latitude", "longitude").
				Select(psql.Select().Column(sq.Expr("?", dstID)).Columns("latitude", "longitude").From("item_positions").Where(sq.Eq{"item": srcID})),
			psql.Insert("item_history").Options("OR REPLACE").Columns("item", "uuid", "history").
				Select(psql.Select().Column(sq.Expr("?", dstID)).Columns("uuid", "history").From("item_history").Where(sq.Eq{"item": srcID})),
			psql.Insert("item_relations").Options("OR IGNORE").Columns("subject", "object", "type").
				Select(psql.Select().Column(sq.Expr("?", dstID)).Columns("object", "type").From("item_relations").
					Where(sq.And{sq.Eq{"subject": srcID}, sq.NotEq{"object": dstID}})),
			psql.Insert("item_relations").Options("OR IGNORE").Columns("subject", "object", "type").
				Select(psql.Select("subject").Column(sq.Expr("?", dstID)).Column("type").From("item_relations").
					Where(sq.And{sq.Eq{"object": srcID}, sq.NotEq{"subject": dstID}})),
			psql.Update("items").
				Set("creation_date", sq.Expr("(SELECT creation_date FROM items WHERE id = ?)", srcID)).
				Where(sq.And{sq.Eq{"id": dstID}, sq.Eq{"creation_date": nil}}),
		}
		for _, stmt := range stmts {
			if _, err := c.exec(stmt); err != nil {
				return fmt.Errorf("copying attributes %d -> %d: %w", srcID, dstID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteCatalog) SetItemCreationDate(id int64, date time.Time) error {
	if _, err := s.exec(psql.Update("items").Set("creation_date", nullTime(date)).Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("setting creation date of item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteCatalog) GetItemCreationDate(id int64) (time.Time, error) {
	var date sql.NullInt64
	if err := s.get(psql.Select("creation_date").From("items").Where(sq.Eq{"id": id}), &date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("getting creation date of item %d: %w", id, err)
	}
	return fromNullTime(date), nil
}

func (s *SQLiteCatalog) SetItemComment(id int64, comment string) error {
	var stmt sq.Sqlizer
	if comment == "" {
		stmt = psql.Delete("item_comments").Where(sq.Eq{"item": id})
	} else {
		stmt = psql.Insert("item_comments").Options("OR REPLACE").Columns("item", "comment").Values(id, comment)
	}
	if _, err := s.exec(stmt); err != nil {
		return fmt.Errorf("setting comment of item %d: %w", id, err)
	}
	return nil
}

// GetItemComment returns the description of an item, or "".
func (s *SQLiteCatalog) GetItemComment(id int64) (string, error) {
	var comment string
	if err := s.get(psql.Select("comment").From("item_comments").Where(sq.Eq{"item": id}), &comment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("getting comment of item %d: %w", id, err)
	}
	return comment, nil
}

func (s *SQLiteCatalog) SetItemPosition(id int64, latitude, longitude float64) error {
	_, err := s.exec(psql.Insert("item_positions").Options("OR REPLACE").
		Columns("item", "latitude", "longitude").Values(id, latitude, longitude))
	if err != nil {
		return fmt.Errorf("setting position of item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteCatalog) ClearItemMetadata(id int64) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		for _, table := range []string{"item_comments", "item_positions"} {
			if _, err := c.exec(psql.Delete(table).Where(sq.Eq{"item": id})); err != nil {
				return fmt.Errorf("clearing %s of item %d: %w", table, id, err)
			}
		}
		return nil
	})
}

func (s *SQLiteCatalog) DeleteObsoleteItems() (int, error) {
	res, err := s.exec(psql.Delete("items").Where(sq.Eq{"status": collection.StatusObsolete}))
	if err != nil {
		return 0, fmt.Errorf("deleting obsolete items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
