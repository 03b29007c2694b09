package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) InsertEvent(ctx context.Context, ev Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (user_id, action, affected_table, affected_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.UserID, ev.Action, ev.Table, ev.RecordID, ev.IP, ev.At)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
