package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence surface used by the service process.
type Store interface {
	DatabaseConnection
	LoadAllPortfolios(ctx context.Context) (map[string]*Portfolio, error)
	UpsertPortfolio(ctx context.Context, p *Portfolio) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS portfolios (
    portfolio_id TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS positions (
    portfolio_id  TEXT NOT NULL REFERENCES portfolios(portfolio_id) ON DELETE CASCADE,
    seq           INTEGER NOT NULL,
    symbol        TEXT NOT NULL,
    quantity      DOUBLE PRECISION NOT NULL DEFAULT 0,
    current_value DOUBLE PRECISION NOT NULL,
    cost_basis    DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (portfolio_id, seq)
);
`

type DB struct {
	Pool *pgxpool.Pool
}

var _ Store = (*DB)(nil)

func NewDB(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres schema: %w", err)
	}
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// readSnapshot runs fn in a read-only repeatable-read transaction so header
// and positions come from the same committed state.
func (db *DB) readSnapshot(ctx context.Context, fn func(q querier) error) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LoadPortfolio reads one portfolio with its positions in order.
func (db *DB) LoadPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error) {
	p := Portfolio{ID: portfolioID}
	err := db.readSnapshot(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `SELECT name FROM portfolios WHERE portfolio_id = $1`, portfolioID).Scan(&p.Name)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPortfolioNotFound
		}
		if err != nil {
			return fmt.Errorf("query portfolio: %w", err)
		}
		p.Positions, err = loadPositions(ctx, q, portfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func loadPositions(ctx context.Context, q querier, portfolioID string) ([]Position, error) {
	rows, err := q.Query(ctx, `
    SELECT symbol, quantity, current_value, cost_basis
    FROM positions WHERE portfolio_id = $1 ORDER BY seq`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	positions := []Position{}
	for rows.Next() {
		var pos Position
		if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.CurrentValue, &pos.CostBasis); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return positions, nil
}

// LoadAllPortfolios loads every portfolio (for cache warmup).
func (db *DB) LoadAllPortfolios(ctx context.Context) (map[string]*Portfolio, error) {
	portfolios := make(map[string]*Portfolio)
	err := db.readSnapshot(ctx, func(q querier) error {
		rows, err := q.Query(ctx, `SELECT portfolio_id, name FROM portfolios`)
		if err != nil {
			return fmt.Errorf("query portfolios: %w", err)
		}
		var headers []Portfolio
		for rows.Next() {
			var p Portfolio
			if err := rows.Scan(&p.ID, &p.Name); err != nil {
				rows.Close()
				return fmt.Errorf("scan portfolio: %w", err)
			}
			headers = append(headers, p)
		}
		// a tx connection can't run a second query while rows are open
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate portfolios: %w", err)
		}

		for i := range headers {
			p := headers[i]
			p.Positions, err = loadPositions(ctx, q, p.ID)
			if err != nil {
				return err
			}
			portfolios[p.ID] = &p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return portfolios, nil
}

// UpsertPortfolio writes the header and replaces the positions in a transaction.
func (db *DB) UpsertPortfolio(ctx context.Context, p *Portfolio) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
    INSERT INTO portfolios (portfolio_id, name, updated_at)
    VALUES ($1, $2, now())
    ON CONFLICT (portfolio_id) DO UPDATE SET
      name = EXCLUDED.name,
      updated_at = now()
    `, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}

	// positions are replaced wholesale, seq preserves their order
	if _, err = tx.Exec(ctx, `DELETE FROM positions WHERE portfolio_id = $1`, p.ID); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}

	for i, pos := range p.Positions {
		_, err = tx.Exec(ctx, `
        INSERT INTO positions (portfolio_id, seq, symbol, quantity, current_value, cost_basis)
        VALUES ($1, $2, $3, $4, $5, $6)
        `, p.ID, i, pos.Symbol, pos.Quantity, pos.CurrentValue, pos.CostBasis)
		if err != nil {
			return fmt.Errorf("insert position %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// OpenStore opens and migrates the store selected by cfg.DBDriver.
func OpenStore(ctx context.Context, cfg *Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.DBDriver {
	case DriverSQLite:
		store, err = NewSQLiteStore(cfg.DBDSN)
	case DriverPostgres:
		store, err = NewDB(ctx, cfg.DBDSN, int32(cfg.DBMaxConns))
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
