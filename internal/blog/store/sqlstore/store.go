// Package sqlstore persists posts, categories and tags in Postgres or SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"quill/internal/platform/database"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) q(ctx context.Context) database.Querier {
	return s.db.Conn(ctx)
}

func rowsAffected(res sql.Result, what string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}
