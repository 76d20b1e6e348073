package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidMigrations = errors.New("invalid_embedded_migrations")

// step is one numbered migration with both directions present.
type step struct {
	version uint
	up      string
	down    string
}

// manifest is the ordered set of migrations shipped in a directory.
type manifest struct {
	dir   string
	steps []step
}

// readManifest lists dir and rejects stray files, duplicate versions and
// migrations missing a direction.
func readManifest(fsys fs.FS, dir string) (*manifest, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := map[uint]*step{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		direction := ""
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			direction = "up"
		case strings.HasSuffix(name, ".down.sql"):
			direction = "down"
		default:
			return nil, fmt.Errorf("%w: unexpected file %s", ErrInvalidMigrations, name)
		}
		version, ok := parseMigrationVersion(name)
		if !ok {
			return nil, fmt.Errorf("%w: invalid filename %s", ErrInvalidMigrations, name)
		}

		s := byVersion[version]
		if s == nil {
			s = &step{version: version}
			byVersion[version] = s
		}
		target := &s.up
		if direction == "down" {
			target = &s.down
		}
		if *target != "" {
			return nil, fmt.Errorf("%w: version %d has two %s files", ErrInvalidMigrations, version, direction)
		}
		*target = name
	}
	if len(byVersion) == 0 {
		return nil, fmt.Errorf("%w: no migrations in %s", ErrInvalidMigrations, dir)
	}

	m := &manifest{dir: dir, steps: make([]step, 0, len(byVersion))}
	for _, s := range byVersion {
		if s.up == "" || s.down == "" {
			return nil, fmt.Errorf("%w: version %d is missing a direction", ErrInvalidMigrations, s.version)
		}
		m.steps = append(m.steps, *s)
	}
	sort.Slice(m.steps, func(i, j int) bool { return m.steps[i].version < m.steps[j].version })
	return m, nil
}

func (m *manifest) latest() uint {
	return m.steps[len(m.steps)-1].version
}

// checksum hashes every up script in version order.
func (m *manifest) checksum(fsys fs.FS) (string, error) {
	hasher := sha256.New()
	for _, s := range m.steps {
		content, err := fs.ReadFile(fsys, path.Join(m.dir, s.up))
		if err != nil {
			return "", fmt.Errorf("read migration %s: %w", s.up, err)
		}
		_, _ = fmt.Fprintf(hasher, "%d\x00%s\x00", s.version, s.up)
		_, _ = hasher.Write(content)
		_, _ = hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func LatestMigrationVersion() (uint, error) {
	m, err := readManifest(embeddedMigrations, migrationsDir)
	if err != nil {
		return 0, err
	}
	return m.latest(), nil
}

// MigrationsChecksum identifies the embedded schema; Gate compares it with the
// checksum recorded by the last migrate run.
func MigrationsChecksum() (string, error) {
	m, err := readManifest(embeddedMigrations, migrationsDir)
	if err != nil {
		return "", err
	}
	return m.checksum(embeddedMigrations)
}

func parseMigrationVersion(name string) (uint, bool) {
	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}
