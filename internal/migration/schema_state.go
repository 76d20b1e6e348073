package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrSchemaNotActive = errors.New("schema_not_active")
	ErrSchemaMismatch  = errors.New("schema_version_mismatch")
)

func activateSchemaState(ctx context.Context, db *sql.DB, schemaVersion string, checksum string) error {
	if db == nil {
		return errors.New("schema state requires database handle")
	}

	version := strings.TrimSpace(schemaVersion)
	if version == "" {
		return errors.New("schema version is required for schema state activation")
	}

	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO schema_state (id, schema_version, checksum, activated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    checksum = EXCLUDED.checksum,
		    activated_at = EXCLUDED.activated_at
	`, version, nullIfEmpty(checksum), now)
	if err != nil {
		return fmt.Errorf("activate schema state: %w", err)
	}
	return nil
}

func nullIfEmpty(value string) any {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return trimmed
}

// Gate reports whether the database schema matches the migrations compiled
// into this binary.
type Gate struct {
	db *gorm.DB
}

func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

func (g *Gate) MustBeActive(ctx context.Context) error {
	if g == nil || g.db == nil {
		return ErrSchemaNotActive
	}

	var row struct {
		SchemaVersion string
		Checksum      sql.NullString
	}
	res := g.db.WithContext(ctx).Raw(`SELECT schema_version, checksum FROM schema_state WHERE id = TRUE`).Scan(&row)
	if res.Error != nil {
		return fmt.Errorf("%w: %w", ErrSchemaNotActive, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSchemaNotActive
	}

	latest, err := LatestMigrationVersion()
	if err != nil {
		return err
	}
	if row.SchemaVersion != strconv.FormatUint(uint64(latest), 10) {
		return fmt.Errorf("%w: database at %s, binary expects %d", ErrSchemaMismatch, row.SchemaVersion, latest)
	}

	checksum, err := MigrationsChecksum()
	if err != nil {
		return err
	}
	if row.Checksum.Valid && row.Checksum.String != checksum {
		return fmt.Errorf("%w: checksum differs", ErrSchemaMismatch)
	}
	return nil
}
