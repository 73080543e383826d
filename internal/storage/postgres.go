package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGateway implements Gateway for PostgreSQL.
type PostgresGateway struct {
	config    *Config
	pool      *pgxpool.Pool
	connected bool
}

// NewPostgresGateway creates a new PostgreSQL persistence gateway.
func NewPostgresGateway(config *Config) *PostgresGateway {
	if config == nil {
		config = DefaultConfig()
	}
	return &PostgresGateway{config: config}
}

// Connect establishes the connection pool and ensures the schema exists.
func (p *PostgresGateway) Connect(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(p.config.ConnectionString)
	if err != nil {
		return NewConnectionError("failed to parse connection string", err)
	}

	poolConfig.MinConns = p.config.PoolMinConns
	poolConfig.MaxConns = p.config.PoolMaxConns
	poolConfig.ConnConfig.ConnectTimeout = p.config.ConnectionTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return NewConnectionError("failed to connect to PostgreSQL", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return NewConnectionError("failed to ping PostgreSQL", err)
	}

	p.pool = pool
	p.connected = true

	return p.ensureSchema(ctx)
}

func (p *PostgresGateway) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id          TEXT PRIMARY KEY,
			content     JSONB NOT NULL,
			version     BIGINT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS operations (
			id           TEXT PRIMARY KEY,
			document_id  TEXT NOT NULL,
			user_id      TEXT NOT NULL,
			op_type      TEXT NOT NULL,
			path         TEXT[] NOT NULL,
			value        JSONB,
			old_value    JSONB,
			version      BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS operations_document_version_idx
			ON operations (document_id, version)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id            TEXT PRIMARY KEY,
			document_id   TEXT NOT NULL,
			element_path  TEXT NOT NULL,
			user_id       TEXT NOT NULL,
			body          TEXT NOT NULL,
			position      JSONB,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS comments_document_idx ON comments (document_id)`,
	}

	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return NewQueryError("failed to ensure schema", err)
		}
	}
	return nil
}

// Disconnect closes the connection pool.
func (p *PostgresGateway) Disconnect(ctx context.Context) error {
	if p.pool != nil {
		p.pool.Close()
		p.connected = false
	}
	return nil
}

// IsConnected returns connection status.
func (p *PostgresGateway) IsConnected() bool {
	return p.connected && p.pool != nil
}

// HealthCheck verifies database connectivity.
func (p *PostgresGateway) HealthCheck(ctx context.Context) (bool, error) {
	if !p.IsConnected() {
		return false, ErrNotConnected
	}
	err := p.pool.Ping(ctx)
	return err == nil, err
}

// GetDocument retrieves a document snapshot by id.
func (p *PostgresGateway) GetDocument(ctx context.Context, id string) (*DocumentRecord, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}

	query := `SELECT id, content, version, updated_at FROM documents WHERE id = $1`
	row := p.pool.QueryRow(ctx, query, id)

	var rec DocumentRecord
	err := row.Scan(&rec.ID, &rec.Content, &rec.Version, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewQueryError("failed to get document", err)
	}

	return &rec, nil
}

// SaveDocument upserts a document snapshot.
func (p *PostgresGateway) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	query := `
		INSERT INTO documents (id, content, version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET content = $2, version = $3, updated_at = NOW()
	`

	if _, err := p.pool.Exec(ctx, query, rec.ID, rec.Content, rec.Version); err != nil {
		return NewQueryError("failed to save document", err)
	}
	return nil
}

// AppendOperation appends one operation log row.
func (p *PostgresGateway) AppendOperation(ctx context.Context, rec *OperationRecord) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	query := `
		INSERT INTO operations (id, document_id, user_id, op_type, path, value, old_value, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := p.pool.Exec(ctx, query,
		rec.ID, rec.DocumentID, rec.UserID, rec.Type, rec.Path,
		rec.Value, rec.OldValue, rec.Version, rec.CreatedAt)
	if err != nil {
		return NewQueryError("failed to append operation", err)
	}
	return nil
}

// ListOperations returns the most recent operations for a document, oldest first.
func (p *PostgresGateway) ListOperations(ctx context.Context, documentID string, limit int) ([]*OperationRecord, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, document_id, user_id, op_type, path, value, old_value, version, created_at
		FROM (
			SELECT * FROM operations
			WHERE document_id = $1
			ORDER BY version DESC
			LIMIT $2
		) recent
		ORDER BY version ASC
	`

	rows, err := p.pool.Query(ctx, query, documentID, limit)
	if err != nil {
		return nil, NewQueryError("failed to list operations", err)
	}
	defer rows.Close()

	var recs []*OperationRecord
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.UserID, &rec.Type, &rec.Path,
			&rec.Value, &rec.OldValue, &rec.Version, &rec.CreatedAt); err != nil {
			return nil, NewQueryError("failed to scan operation", err)
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// SaveComment appends a comment row.
func (p *PostgresGateway) SaveComment(ctx context.Context, rec *CommentRecord) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}

	query := `
		INSERT INTO comments (id, document_id, element_path, user_id, body, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := p.pool.Exec(ctx, query,
		rec.ID, rec.DocumentID, rec.ElementPath, rec.UserID, rec.Text, rec.Position, rec.CreatedAt)
	if err != nil {
		return NewQueryError("failed to save comment", err)
	}
	return nil
}

// ListComments returns every comment on a document, oldest first.
func (p *PostgresGateway) ListComments(ctx context.Context, documentID string) ([]*CommentRecord, error) {
	if !p.IsConnected() {
		return nil, ErrNotConnected
	}

	query := `
		SELECT id, document_id, element_path, user_id, body, position, created_at
		FROM comments
		WHERE document_id = $1
		ORDER BY created_at ASC
	`

	rows, err := p.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, NewQueryError("failed to list comments", err)
	}
	defer rows.Close()

	var recs []*CommentRecord
	for rows.Next() {
		var rec CommentRecord
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.ElementPath, &rec.UserID,
			&rec.Text, &rec.Position, &rec.CreatedAt); err != nil {
			return nil, NewQueryError("failed to scan comment", err)
		}
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}
