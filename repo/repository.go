// Package repo executes quarry statements against a Postgres-compatible
// database. It owns connection pooling, transactions, and error
// classification; the query package stays pure and this package stays
// thin around it.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/quarrydb/quarry/query"
	"github.com/quarrydb/quarry/schema"
)

// executor abstracts *sql.DB and *sql.Tx
type executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Repository executes built statements for the registered models
type Repository struct {
	db       *sql.DB
	registry *schema.Registry
	logger   *zap.Logger
	debug    bool
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger injects the diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// WithDebug routes every generated statement to the logger before
// execution
func WithDebug(debug bool) Option {
	return func(r *Repository) {
		r.debug = debug
	}
}

// NewRepository creates a repository over an open connection pool
func NewRepository(db *sql.DB, registry *schema.Registry, opts ...Option) *Repository {
	r := &Repository{
		db:       db,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DB returns the underlying connection pool
func (r *Repository) DB() *sql.DB {
	return r.db
}

// model resolves a registered model by name
func (r *Repository) model(name string) (*schema.Model, error) {
	m, ok := r.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("model %s is not registered", name)
	}
	return m, nil
}

// Find executes a SELECT described by q and returns the matching rows
func (r *Repository) Find(ctx context.Context, modelName string, q *query.SelectQuery) ([]map[string]interface{}, error) {
	return r.find(ctx, r.db, modelName, q)
}

// FindTx is Find inside an existing transaction
func (r *Repository) FindTx(ctx context.Context, tx *sql.Tx, modelName string, q *query.SelectQuery) ([]map[string]interface{}, error) {
	return r.find(ctx, tx, modelName, q)
}

func (r *Repository) find(ctx context.Context, ex executor, modelName string, q *query.SelectQuery) ([]map[string]interface{}, error) {
	model, err := r.model(modelName)
	if err != nil {
		return nil, err
	}
	stmt, err := query.BuildSelect(r.registry, model, q)
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx, ex, stmt)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", modelName, ConvertDBError(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

// FindOne returns the first row matching the filter, or ErrNotFound
func (r *Repository) FindOne(ctx context.Context, modelName string, where query.Where) (map[string]interface{}, error) {
	records, err := r.Find(ctx, modelName, &query.SelectQuery{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Count returns the number of rows matching the filter
func (r *Repository) Count(ctx context.Context, modelName string, where query.Where) (int64, error) {
	model, err := r.model(modelName)
	if err != nil {
		return 0, err
	}
	params := query.NewParams()
	frag, err := query.CompileWhere(r.registry, model, where, params, nil)
	if err != nil {
		return 0, err
	}
	text := `SELECT COUNT(*) FROM ` + query.QuoteTable(model.Table)
	if frag != "" {
		text += " WHERE " + frag
	}
	stmt := &query.Statement{Text: text, Params: params.Values()}

	r.logStatement(stmt)
	var count int64
	err = r.db.QueryRowContext(ctx, stmt.Text, bindArgs(stmt.Params)...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", modelName, ConvertDBError(err))
	}
	return count, nil
}

// Create inserts one record and returns it as stored
func (r *Repository) Create(ctx context.Context, modelName string, record map[string]interface{}) (map[string]interface{}, error) {
	records, err := r.CreateEach(ctx, modelName, []map[string]interface{}{record}, nil)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// CreateEach inserts a batch of records in one statement and returns
// them as stored
func (r *Repository) CreateEach(ctx context.Context, modelName string, records []map[string]interface{}, onConflict *query.OnConflict) ([]map[string]interface{}, error) {
	model, err := r.model(modelName)
	if err != nil {
		return nil, err
	}
	stmt, err := query.BuildInsert(r.registry, model, records, &query.InsertOptions{
		Returning:  []string{},
		OnConflict: onConflict,
	})
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx, r.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", modelName, ConvertDBError(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

// Update applies values to every row matching the filter and returns
// the updated rows
func (r *Repository) Update(ctx context.Context, modelName string, where query.Where, values map[string]interface{}) ([]map[string]interface{}, error) {
	model, err := r.model(modelName)
	if err != nil {
		return nil, err
	}
	stmt, err := query.BuildUpdate(r.registry, model, values, where, &query.UpdateOptions{Returning: []string{}})
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx, r.db, stmt)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", modelName, ConvertDBError(err))
	}
	defer rows.Close()

	return scanRows(rows)
}

// UpdateOne applies values to the rows matching the filter and returns
// the first updated row, or ErrNotFound when nothing matched
func (r *Repository) UpdateOne(ctx context.Context, modelName string, where query.Where, values map[string]interface{}) (map[string]interface{}, error) {
	records, err := r.Update(ctx, modelName, where, values)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Destroy deletes every row matching the filter and returns how many
// went away
func (r *Repository) Destroy(ctx context.Context, modelName string, where query.Where) (int64, error) {
	model, err := r.model(modelName)
	if err != nil {
		return 0, err
	}
	stmt, err := query.BuildDelete(r.registry, model, where, nil)
	if err != nil {
		return 0, err
	}

	r.logStatement(stmt)
	result, err := r.db.ExecContext(ctx, stmt.Text, bindArgs(stmt.Params)...)
	if err != nil {
		return 0, fmt.Errorf("destroy %s: %w", modelName, ConvertDBError(err))
	}
	return result.RowsAffected()
}

// query runs a statement through an executor with debug logging
func (r *Repository) query(ctx context.Context, ex executor, stmt *query.Statement) (*sql.Rows, error) {
	r.logStatement(stmt)
	return ex.QueryContext(ctx, stmt.Text, bindArgs(stmt.Params)...)
}

// logStatement routes generated SQL to the diagnostic sink when the
// debug toggle is on
func (r *Repository) logStatement(stmt *query.Statement) {
	if !r.debug {
		return
	}
	r.logger.Debug("executing statement",
		zap.String("sql", stmt.Text),
		zap.Int("params", len(stmt.Params)),
	)
}

// bindArgs adapts compiled parameters for the driver: slice parameters
// become Postgres arrays
func bindArgs(params []interface{}) []interface{} {
	args := make([]interface{}, len(params))
	for i, p := range params {
		args[i] = p
		if p == nil {
			continue
		}
		if _, isBytes := p.([]byte); isBytes {
			continue
		}
		if reflect.TypeOf(p).Kind() == reflect.Slice {
			args[i] = pq.Array(p)
		}
	}
	return args
}
