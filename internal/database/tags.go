package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/collection"
)

// Tag operations

func (s *SQLiteCatalog) GetItemIDsInTag(tag string) ([]int64, error) {
	ids, err := s.ids(psql.Select("it.item").From("item_tags it").
		Join("tags t ON t.id = it.tag").Where(sq.Eq{"t.name": tag}).OrderBy("it.item"))
	if err != nil {
		return nil, fmt.Errorf("listing items in tag %s: %w", tag, err)
	}
	return ids, nil
}

func (s *SQLiteCatalog) GetItemTags(id int64) ([]string, error) {
	rows, err := s.query(psql.Select("t.name").From("tags t").
		Join("item_tags it ON it.tag = t.id").Where(sq.Eq{"it.item": id}).OrderBy("t.name"))
	if err != nil {
		return nil, fmt.Errorf("listing tags of item %d: %w", id, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func (s *SQLiteCatalog) AddItemTag(id int64, tag string) error {
	return s.inTx(func(c *SQLiteCatalog) error {
		if _, err := c.exec(psql.Insert("tags").Options("OR IGNORE").Columns("name").Values(tag)); err != nil {
			return fmt.Errorf("creating tag %s: %w", tag, err)
		}
		_, err := c.exec(psql.Insert("item_tags").Options("OR IGNORE").Columns("item", "tag").
			Select(psql.Select().Column(sq.Expr("?", id)).Column("id").From("tags").Where(sq.Eq{"name": tag})))
		if err != nil {
			return fmt.Errorf("tagging item %d with %s: %w", id, tag, err)
		}
		return nil
	})
}

func (s *SQLiteCatalog) RemoveItemTag(id int64, tag string) error {
	_, err := s.exec(psql.Delete("item_tags").Where(sq.And{
		sq.Eq{"item": id},
		sq.Expr("tag IN (SELECT id FROM tags WHERE name = ?)", tag),
	}))
	if err != nil {
		return fmt.Errorf("untagging item %d from %s: %w", id, tag, err)
	}
	return nil
}

// History operations

func (s *SQLiteCatalog) SetItemHistory(id int64, uuid, history string) error {
	var stmt sq.Sqlizer
	if uuid == "" && history == "" {
		stmt = psql.Delete("item_history").Where(sq.Eq{"item": id})
	} else {
		stmt = psql.Insert("item_history").Options("OR REPLACE").Columns("item", "uuid", "history").Values(id, uuid, history)
	}
	if _, err := s.exec(stmt); err != nil {
		return fmt.Errorf("setting history of item %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteCatalog) GetItemHistory(id int64) (*collection.ItemHistory, error) {
	h := &collection.ItemHistory{ItemID: id}
	err := s.get(psql.Select("uuid", "history").From("item_history").Where(sq.Eq{"item": id}), &h.UUID, &h.History)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting history of item %d: %w", id, err)
	}
	return h, nil
}

func (s *SQLiteCatalog) GetItemIDsByUUID(uuid string) ([]int64, error) {
	if uuid == "" {
		return nil, nil
	}
	ids, err := s.ids(psql.Select("h.item").From("item_history h").
		Join("items i ON i.id = h.item").
		Where(sq.Eq{"h.uuid": uuid, "i.status": liveStatuses}).OrderBy("h.item"))
	if err != nil {
		return nil, fmt.Errorf("finding items by uuid: %w", err)
	}
	return ids, nil
}

func (s *SQLiteCatalog) AddRelation(subject, object int64, relation collection.RelationType) error {
	_, err := s.exec(psql.Insert("item_relations").Options("OR IGNORE").
		Columns("subject", "object", "type").Values(subject, object, relation))
	if err != nil {
		return fmt.Errorf("adding relation %d -> %d: %w", subject, object, err)
	}
	return nil
}

// GetRelationCloud walks relations of one type in both directions starting
// at id and returns every edge found, ordered by subject then object.
func (s *SQLiteCatalog) GetRelationCloud(id int64, relation collection.RelationType) ([][2]int64, error) {
	visited := map[int64]bool{id: true}
	frontier := []int64{id}
	edges := make(map[[2]int64]struct{})

	for len(frontier) > 0 {
		var next []int64
		for _, batch := range batches(frontier) {
			rows, err := s.query(psql.Select("subject", "object").From("item_relations").Where(sq.And{
				sq.Eq{"type": relation},
				sq.Or{sq.Eq{"subject": batch}, sq.Eq{"object": batch}},
			}))
			if err != nil {
				return nil, fmt.Errorf("walking relations of item %d: %w", id, err)
			}
			for rows.Next() {
				var e [2]int64
				if err := rows.Scan(&e[0], &e[1]); err != nil {
					rows.Close()
					return nil, err
				}
				edges[e] = struct{}{}
				for _, v := range e {
					if !visited[v] {
						visited[v] = true
						next = append(next, v)
					}
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, err
			}
			rows.Close()
		}
		frontier = next
	}

	out := make([][2]int64, 0, len(edges))
	for e := range edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out, nil
}

// Settings

func (s *SQLiteCatalog) GetSetting(name string) (string, error) {
	var value string
	if err := s.get(psql.Select("value").From("settings").Where(sq.Eq{"name": name}), &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("reading setting %s: %w", name, err)
	}
	return value, nil
}

func (s *SQLiteCatalog) SetSetting(name, value string) error {
	_, err := s.exec(psql.Insert("settings").Options("OR REPLACE").Columns("name", "value").Values(name, value))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", name, err)
	}
	return nil
}
