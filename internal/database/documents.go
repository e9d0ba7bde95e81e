package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"savium-invest-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Service) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	return getDocument(ctx, s.db, collection, id)
}

func getDocument(ctx context.Context, q querier, collection, id string) (*store.Document, error) {
	var raw, createdAt, updatedAt string
	err := q.QueryRowContext(ctx, queryGetDocument, collection, id).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s/%s: %w", collection, id, err)
	}

	data, err := decodeObject([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, err)
	}
	return &store.Document{
		Id:        id,
		Data:      data,
		CreatedAt: parseTimestamp(createdAt),
		UpdatedAt: parseTimestamp(updatedAt),
	}, nil
}

func (s *Service) Query(ctx context.Context, collection string, filters ...store.Filter) ([]store.Document, error) {
	var sb strings.Builder
	sb.WriteString(queryListDocuments)
	args := []any{collection}

	for _, f := range filters {
		path, err := jsonPath(f.Field)
		if err != nil {
			return nil, err
		}
		if f.Value == nil {
			sb.WriteString(" AND json_extract(data, ?) IS NULL")
			args = append(args, path)
			continue
		}
		sb.WriteString(" AND json_extract(data, ?) = ?")
		args = append(args, path, filterArg(f.Value))
	}
	sb.WriteString(queryOrderDocuments)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		var id, raw, createdAt, updatedAt string
		if err := rows.Scan(&id, &raw, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("unable to scan %s row: %w", collection, err)
		}
		data, err := decodeObject([]byte(raw))
		if err != nil {
			zap.L().Warn("Skipping undecodable document",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.Error(err))
			continue
		}
		docs = append(docs, store.Document{
			Id:        id,
			Data:      data,
			CreatedAt: parseTimestamp(createdAt),
			UpdatedAt: parseTimestamp(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", collection, err)
	}
	return docs, nil
}

func (s *Service) Set(ctx context.Context, collection, id string, data any) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	now := s.timestamp()
	if _, err := s.db.ExecContext(ctx, queryUpsertDocument, collection, id, raw, now, now); err != nil {
		return fmt.Errorf("unable to write %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, collection, id string, data any) error {
	raw, err := encodeDocument(data)
	if err != nil {
		return err
	}
	now := s.timestamp()
	result, err := s.db.ExecContext(ctx, queryInsertDocument, collection, id, raw, now, now)
	if err != nil {
		return fmt.Errorf("unable to create %s/%s: %w", collection, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to check insert of %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", store.ErrAlreadyExists, collection, id)
	}
	return nil
}

func (s *Service) Add(ctx context.Context, collection string, data any) (string, error) {
	id := uuid.New().String()
	if err := s.Create(ctx, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return s.modify(ctx, collection, id, func(data map[string]any) error {
		return mergeFields(data, fields)
	})
}

func (s *Service) UpdateIf(ctx context.Context, collection, id string, conds []store.Condition, fields map[string]any) error {
	return s.modify(ctx, collection, id, func(data map[string]any) error {
		for _, cond := range conds {
			ok, err := conditionHolds(data, cond)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s/%s %s", store.ErrConditionFailed, collection, id, cond.Field)
			}
		}
		return mergeFields(data, fields)
	})
}

func (s *Service) Increment(ctx context.Context, collection, id string, deltas map[string]decimal.Decimal, floorAtZero bool, extra map[string]any) (map[string]decimal.Decimal, error) {
	results := make(map[string]decimal.Decimal, len(deltas))
	err := s.modify(ctx, collection, id, func(data map[string]any) error {
		for field, delta := range deltas {
			cur, _, err := getPath(data, field)
			if err != nil {
				return err
			}
			value, err := toDecimal(cur)
			if err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			value = value.Add(delta)
			if floorAtZero && value.IsNegative() {
				value = decimal.Zero
			}
			if err := setPath(data, field, value.String()); err != nil {
				return err
			}
			results[field] = value
		}
		return mergeFields(data, extra)
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// modify runs a read-modify-write of one document inside a write transaction.
func (s *Service) modify(ctx context.Context, collection, id string, fn func(map[string]any) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to rollback transaction", zap.Error(err))
		}
	}()

	doc, err := getDocument(ctx, tx, collection, id)
	if err != nil {
		return err
	}
	if err := fn(doc.Data); err != nil {
		return err
	}

	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return fmt.Errorf("unable to marshal %s/%s: %w", collection, id, err)
	}
	if _, err := tx.ExecContext(ctx, queryUpdateDocument, string(raw), s.timestamp(), collection, id); err != nil {
		return fmt.Errorf("unable to update %s/%s: %w", collection, id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("unable to commit update of %s/%s: %w", collection, id, err)
	}
	return nil
}

func conditionHolds(data map[string]any, cond store.Condition) (bool, error) {
	cur, found, err := getPath(data, cond.Field)
	if err != nil {
		return false, err
	}
	for _, want := range cond.OneOf {
		if want == nil {
			if !found || cur == nil {
				return true, nil
			}
			continue
		}
		if !found {
			continue
		}
		normalized, err := normalize(want)
		if err != nil {
			return false, err
		}
		if reflect.DeepEqual(cur, normalized) {
			return true, nil
		}
	}
	return false, nil
}

func mergeFields(data map[string]any, fields map[string]any) error {
	for path, value := range fields {
		normalized, err := normalize(value)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := setPath(data, path, normalized); err != nil {
			return err
		}
	}
	return nil
}

func encodeDocument(data any) (string, error) {
	obj, err := normalizeObject(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("unable to marshal document: %w", err)
	}
	return string(raw), nil
}
