// internal/ledger/postgres.go
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger backs balances with the users table. Debit is guarded in SQL
// so a concurrent debit can never drive a balance negative.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Debit(ctx context.Context, playerID string, amount int64) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE users
		SET stars_balance = stars_balance - $2
		WHERE id = $1 AND stars_balance >= $2
	`, playerID, amount)
	if err != nil {
		return fmt.Errorf("debit player %s: %w", playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (l *PostgresLedger) Credit(ctx context.Context, playerID string, amount int64) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE users
		SET stars_balance = stars_balance + $2
		WHERE id = $1
	`, playerID, amount)
	if err != nil {
		return fmt.Errorf("credit player %s: %w", playerID, err)
	}
	return nil
}

func (l *PostgresLedger) Balance(ctx context.Context, playerID string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx, `
		SELECT stars_balance FROM users WHERE id = $1
	`, playerID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("balance for player %s: %w", playerID, err)
	}
	return balance, nil
}
