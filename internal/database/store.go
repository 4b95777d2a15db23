package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/varoOP/anidbkit/internal/domain"
)

// StoreRepo implements domain.Store on the kv_store table
type StoreRepo struct {
	log zerolog.Logger
	db  *DB
}

// NewStoreRepo creates a new sqlite-backed store
func NewStoreRepo(log zerolog.Logger, db *DB) *StoreRepo {
	return &StoreRepo{
		log: log.With().Str("repo", "store").Logger(),
		db:  db,
	}
}

var _ domain.Store = (*StoreRepo)(nil)

func (r *StoreRepo) Get(ctx context.Context, key string) ([]byte, error) {
	return r.get(ctx, r.db.handler, key)
}

func (r *StoreRepo) Put(ctx context.Context, key string, value []byte) error {
	return r.put(ctx, r.db.handler, key, value)
}

// Update reads, transforms and writes key inside a single transaction
func (r *StoreRepo) Update(ctx context.Context, key string, fn domain.UpdateFunc) error {
	r.db.lock.Lock()
	defer r.db.lock.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	old, err := r.get(ctx, tx, key)
	found := true
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		old, found = nil, false
	}

	value, err := fn(old, found)
	if err != nil {
		return err
	}

	if err := r.put(ctx, tx, key, value); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "error committing transaction")
	}

	return nil
}

func (r *StoreRepo) Delete(ctx context.Context, key string) error {
	queryBuilder := r.db.squirrel.
		Delete("kv_store").
		Where(sq.Eq{"key": key})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Delete")

	if _, err := r.db.handler.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Scan visits every key starting with prefix, in key order
func (r *StoreRepo) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	queryBuilder := r.db.squirrel.
		Select("key", "value").
		From("kv_store").
		OrderBy("key")

	if prefix != "" {
		queryBuilder = queryBuilder.Where(sq.Expr(`key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%"))
	}

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Scan")

	rows, err := r.db.handler.QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "error executing query")
	}

	type row struct {
		key   string
		value []byte
	}

	// collect first so fn may write to the store without holding a read cursor open
	var result []row
	for rows.Next() {
		var rr row
		if err := rows.Scan(&rr.key, &rr.value); err != nil {
			rows.Close()
			return errors.Wrap(err, "error scanning row")
		}
		result = append(result, rr)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.Wrap(err, "error iterating rows")
	}
	rows.Close()

	for _, rr := range result {
		if err := fn(rr.key, rr.value); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying database
func (r *StoreRepo) Close() error {
	return r.db.Close()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *StoreRepo) get(ctx context.Context, q querier, key string) ([]byte, error) {
	queryBuilder := r.db.squirrel.
		Select("value").
		From("kv_store").
		Where(sq.Eq{"key": key})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Get")

	var value []byte
	if err := q.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "error executing query")
	}

	return value, nil
}

func (r *StoreRepo) put(ctx context.Context, q querier, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}

	queryBuilder := r.db.squirrel.
		Replace("kv_store").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().Format(time.RFC3339))

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Int("bytes", len(value)).Msg("Put")

	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
