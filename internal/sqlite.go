package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS portfolios (
    portfolio_id TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS positions (
    portfolio_id  TEXT NOT NULL REFERENCES portfolios(portfolio_id) ON DELETE CASCADE,
    seq           INTEGER NOT NULL,
    symbol        TEXT NOT NULL,
    quantity      REAL NOT NULL DEFAULT 0,
    current_value REAL NOT NULL,
    cost_basis    REAL NOT NULL,
    PRIMARY KEY (portfolio_id, seq)
);
`

// SQLiteStore is a Store on a local SQLite file (or ":memory:").
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared and serializes writers
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Close() {
	_ = s.conn.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return nil
}

// readSnapshot runs fn in one transaction so header and positions come from
// the same committed state.
func (s *SQLiteStore) readSnapshot(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error) {
	p := Portfolio{ID: portfolioID}
	err := s.readSnapshot(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT name FROM portfolios WHERE portfolio_id = ?`, portfolioID).Scan(&p.Name)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPortfolioNotFound
		}
		if err != nil {
			return fmt.Errorf("query portfolio: %w", err)
		}
		p.Positions, err = sqlitePositions(ctx, tx, portfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func sqlitePositions(ctx context.Context, tx *sql.Tx, portfolioID string) ([]Position, error) {
	rows, err := tx.QueryContext(ctx, `
    SELECT symbol, quantity, current_value, cost_basis
    FROM positions WHERE portfolio_id = ? ORDER BY seq`, portfolioID)
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

func (s *SQLiteStore) LoadAllPortfolios(ctx context.Context) (map[string]*Portfolio, error) {
	portfolios := make(map[string]*Portfolio)
	err := s.readSnapshot(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT portfolio_id, name FROM portfolios`)
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
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate portfolios: %w", err)
		}

		for i := range headers {
			p := headers[i]
			p.Positions, err = sqlitePositions(ctx, tx, p.ID)
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

func (s *SQLiteStore) UpsertPortfolio(ctx context.Context, p *Portfolio) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
    INSERT INTO portfolios (portfolio_id, name, updated_at)
    VALUES (?, ?, CURRENT_TIMESTAMP)
    ON CONFLICT (portfolio_id) DO UPDATE SET
      name = excluded.name,
      updated_at = CURRENT_TIMESTAMP
    `, p.ID, p.Name)
	if err != nil {
		return fmt.Errorf("upsert portfolio: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE portfolio_id = ?`, p.ID); err != nil {
		return fmt.Errorf("delete positions: %w", err)
	}

	for i, pos := range p.Positions {
		_, err = tx.ExecContext(ctx, `
        INSERT INTO positions (portfolio_id, seq, symbol, quantity, current_value, cost_basis)
        VALUES (?, ?, ?, ?, ?, ?)
        `, p.ID, i, pos.Symbol, pos.Quantity, pos.CurrentValue, pos.CostBasis)
		if err != nil {
			return fmt.Errorf("insert position %d: %w", i, err)
		}
	}

	return tx.Commit()
}
