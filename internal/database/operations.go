package database

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"colsync/internal/model"
)

// Scan operation tracking

func (s *SQLiteCatalog) CreateScanOperation(operation, parameters string) (*model.ScanOperation, error) {
	now := time.Now().UTC()
	res, err := s.exec(psql.Insert("scan_operations").
		Columns("started_at", "operation", "parameters").
		Values(now.UnixNano(), operation, parameters))
	if err != nil {
		return nil, fmt.Errorf("creating scan operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating scan operation: %w", err)
	}
	return &model.ScanOperation{
		ID:         id,
		StartedAt:  now,
		Operation:  operation,
		Parameters: parameters,
		Status:     "running",
	}, nil
}

func (s *SQLiteCatalog) FinishScanOperation(id int64, status string) error {
	_, err := s.exec(psql.Update("scan_operations").
		Set("finished_at", time.Now().UTC().UnixNano()).
		Set("status", status).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("finishing scan operation: %w", err)
	}
	return nil
}

// ListScanOperations returns the most recent operations, newest first.
func (s *SQLiteCatalog) ListScanOperations(limit int) ([]*model.ScanOperation, error) {
	rows, err := s.query(psql.Select("id", "started_at", "finished_at", "operation", "parameters", "status").
		From("scan_operations").OrderBy("id DESC").Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("listing scan operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.ScanOperation
	for rows.Next() {
		var (
			op       model.ScanOperation
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&op.ID, &started, &finished, &op.Operation, &op.Parameters, &op.Status); err != nil {
			return nil, err
		}
		op.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := fromNullTime(finished)
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

func (s *SQLiteCatalog) MaxScanOperationID() (int64, error) {
	var id sql.NullInt64
	if err := s.get(psql.Select("MAX(id)").From("scan_operations"), &id); err != nil {
		return 0, fmt.Errorf("getting max scan operation ID: %w", err)
	}
	return id.Int64, nil
}
