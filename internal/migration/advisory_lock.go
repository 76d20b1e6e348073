package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// migrateLockKey serializes migrate runs across processes.
const migrateLockKey int64 = 7_311_604_228

const migrateLockPoll = 500 * time.Millisecond

var ErrMigrationLocked = errors.New("migration_lock_timeout")

// migrateLock holds a session-level advisory lock. The lock belongs to the
// connection that took it, so that connection is pinned until release.
type migrateLock struct {
	conn *sql.Conn
}

// lockMigrations waits for the advisory lock until ctx is done.
func lockMigrations(ctx context.Context, db *sql.DB) (*migrateLock, error) {
	if db == nil {
		return nil, errors.New("migration lock requires a database handle")
	}
	if db.Stats().MaxOpenConnections == 1 {
		return nil, errors.New("migrate needs database.max_open_conns of at least 2")
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("pin migration connection: %w", err)
	}

	ticker := time.NewTicker(migrateLockPoll)
	defer ticker.Stop()
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrateLockKey).Scan(&locked); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("acquire migration lock: %w", err)
		}
		if locked {
			return &migrateLock{conn: conn}, nil
		}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrMigrationLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *migrateLock) release(ctx context.Context) error {
	defer l.conn.Close()
	var released bool
	if err := l.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", migrateLockKey).Scan(&released); err != nil {
		return fmt.Errorf("release migration lock: %w", err)
	}
	if !released {
		return errors.New("migration lock was not held by this session")
	}
	return nil
}
