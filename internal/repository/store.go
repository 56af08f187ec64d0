package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lsuits/ues-sync/internal/models"
	appErrors "github.com/lsuits/ues-sync/pkg/errors"
)

// Store is the generic keyed-record store the typed repositories build on.
// Entity kinds resolve to tables through the models registry; role-scoped
// kinds (teacher, student) get their role condition injected automatically.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps a database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for named inserts and transactions.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func storeErr(err error, op string) error {
	return appErrors.Wrap(fmt.Errorf("%s: %w", op, err), appErrors.ErrStore.Code, appErrors.ErrStore.Message)
}

func (s *Store) scoped(kind models.EntityKind, filter *Filter) (models.EntityInfo, *Filter, error) {
	info, ok := kind.Info()
	if !ok {
		return models.EntityInfo{}, nil, appErrors.Clone(appErrors.ErrStore, fmt.Sprintf("unknown entity kind %q", kind))
	}
	if filter == nil {
		filter = NewFilter()
	}
	if info.RoleValue != "" {
		filter.Equal("role", info.RoleValue)
	}
	return info, filter, nil
}

// Find selects columns from the kind's table into dest, applying the filter,
// an optional ORDER BY expression, and offset/limit paging (limit <= 0 means
// no limit).
func (s *Store) Find(ctx context.Context, dest interface{}, kind models.EntityKind, columns string, filter *Filter, orderBy string, offset, limit int) error {
	info, filter, err := s.scoped(kind, filter)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", columns, info.Table)
	b.WriteString(filter.JoinClause())
	b.WriteString(filter.WhereClause())
	if orderBy != "" {
		fmt.Fprintf(&b, " ORDER BY %s", orderBy)
	}
	if limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", limit)
	}
	if offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", offset)
	}

	if err := s.db.SelectContext(ctx, dest, b.String(), filter.Args()...); err != nil {
		return storeErr(err, "find "+string(kind))
	}
	return nil
}

// Count returns the number of rows matching the filter.
func (s *Store) Count(ctx context.Context, kind models.EntityKind, filter *Filter) (int, error) {
	info, filter, err := s.scoped(kind, filter)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s%s", info.Table, filter.JoinClause(), filter.WhereClause())
	var total int
	if err := s.db.GetContext(ctx, &total, query, filter.Args()...); err != nil {
		return 0, storeErr(err, "count "+string(kind))
	}
	return total, nil
}

// Delete removes rows matching the filter, returning the affected count.
func (s *Store) Delete(ctx context.Context, kind models.EntityKind, filter *Filter) (int64, error) {
	info, filter, err := s.scoped(kind, filter)
	if err != nil {
		return 0, err
	}
	if filter.JoinClause() != "" {
		return 0, appErrors.Clone(appErrors.ErrStore, "delete does not support joins")
	}

	query := fmt.Sprintf("DELETE FROM %s%s", info.Table, filter.WhereClause())
	res, err := s.db.ExecContext(ctx, query, filter.Args()...)
	if err != nil {
		return 0, storeErr(err, "delete "+string(kind))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr(err, "delete "+string(kind))
	}
	return affected, nil
}

type metaRow struct {
	Name  string `db:"name"`
	Value string `db:"value"`
}

// LoadMeta fetches the metadata bag for a parent record.
func (s *Store) LoadMeta(ctx context.Context, kind models.EntityKind, parentID string) (models.Metadata, error) {
	info, ok := kind.Info()
	if !ok || info.MetaTable == "" {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT name, value FROM %s WHERE parent_id = $1", info.MetaTable)
	var rows []metaRow
	if err := s.db.SelectContext(ctx, &rows, query, parentID); err != nil {
		return nil, storeErr(err, "load meta "+string(kind))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	meta := make(models.Metadata, len(rows))
	for _, r := range rows {
		meta[r.Name] = r.Value
	}
	return meta, nil
}

// SaveMeta replaces the metadata bag for a parent record.
func (s *Store) SaveMeta(ctx context.Context, kind models.EntityKind, parentID string, meta models.Metadata) error {
	info, ok := kind.Info()
	if !ok || info.MetaTable == "" {
		return nil
	}

	current, err := s.LoadMeta(ctx, kind, parentID)
	if err != nil {
		return err
	}
	if current.Equal(meta) {
		return nil
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE parent_id = $1", info.MetaTable)
	if _, err := s.db.ExecContext(ctx, del, parentID); err != nil {
		return storeErr(err, "clear meta "+string(kind))
	}
	if len(meta) == 0 {
		return nil
	}

	ins := fmt.Sprintf("INSERT INTO %s (parent_id, name, value) VALUES ($1, $2, $3)", info.MetaTable)
	for name, value := range meta {
		if _, err := s.db.ExecContext(ctx, ins, parentID, name, value); err != nil {
			return storeErr(err, "save meta "+string(kind))
		}
	}
	return nil
}
