package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	migrationsGlob = "sql/migrations/*.sql"
	// migrationLockKey — ключ pg_advisory_lock, общий для всех инстансов сервиса заказов.
	migrationLockKey = int64(0x6f72646572)
	migrationTimeout = 5 * time.Second
	unlockTimeout    = time.Second

	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
)

var (
	//go:embed sql/migrations/*.sql
	migrationsFS embed.FS

	migrationFileRe = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)
)

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

func (m migration) label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// planUp отбирает неприменённые миграции по возрастанию версии; steps=0 без ограничения.
func planUp(all []migration, applied map[int64]struct{}, steps int) []migration {
	var plan []migration
	for _, m := range all {
		if steps > 0 && len(plan) == steps {
			break
		}
		if _, ok := applied[m.Version]; !ok {
			plan = append(plan, m)
		}
	}
	return plan
}

// planDown отбирает steps последних применённых версий, начиная с самой новой.
func planDown(all []migration, applied map[int64]struct{}, steps int) ([]migration, error) {
	known := make(map[int64]migration, len(all))
	for _, m := range all {
		known[m.Version] = m
	}

	versions := make([]int64, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if len(versions) > steps {
		versions = versions[:steps]
	}

	plan := make([]migration, 0, len(versions))
	for _, v := range versions {
		m, ok := known[v]
		if !ok {
			return nil, fmt.Errorf("cannot rollback unknown migration version %d", v)
		}
		plan = append(plan, m)
	}
	return plan, nil
}

// MigrateUp применяет up-миграции; steps=0 означает все доступные.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.migrate(ctx, func(all []migration, applied map[int64]struct{}) ([]migration, error) {
		return planUp(all, applied, steps), nil
	}, true)
}

// MigrateDown откатывает последние steps миграций; steps<=0 трактуется как 1.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.migrate(ctx, func(all []migration, applied map[int64]struct{}) ([]migration, error) {
		return planDown(all, applied, steps)
	}, false)
}

// MigrationStatus возвращает текущую версию схемы и число применённых миграций.
func (s *Store) MigrationStatus(ctx context.Context) (version int64, count int, err error) {
	if s == nil || s.db == nil {
		return 0, 0, errStoreNotInitialized
	}

	ctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return 0, 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0), COUNT(*) FROM schema_migrations`)
	if err := row.Scan(&version, &count); err != nil {
		return 0, 0, fmt.Errorf("query migration status: %w", err)
	}
	return version, count, nil
}

type migrationPlanner func(all []migration, applied map[int64]struct{}) ([]migration, error)

// migrate держит advisory lock на выделенном соединении, строит план и
// выполняет его. Параллельно стартующие инстансы ждут друг друга на блокировке.
func (s *Store) migrate(ctx context.Context, plan migrationPlanner, up bool) (err error) {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	all, err := loadMigrationsFromFS(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration connection: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, sql.ErrConnDone) {
			err = errors.Join(err, fmt.Errorf("release migration connection: %w", closeErr))
		}
	}()

	lockCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if _, unlockErr := conn.ExecContext(unlockCtx, `SELECT pg_advisory_unlock($1)`, migrationLockKey); unlockErr != nil {
			err = errors.Join(err, fmt.Errorf("release migration lock: %w", unlockErr))
		}
	}()

	if _, err := conn.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	steps, err := plan(all, applied)
	if err != nil {
		return err
	}
	for _, m := range steps {
		if err := applyMigration(ctx, conn, m, up); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration выполняет скрипт и отметку в schema_migrations одной транзакцией.
func applyMigration(ctx context.Context, conn *sql.Conn, m migration, up bool) (err error) {
	direction, script := "down", m.DownSQL
	record, args := `DELETE FROM schema_migrations WHERE version = $1`, []any{m.Version}
	if up {
		direction, script = "up", m.UpSQL
		record, args = `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, []any{m.Version, m.Name}
	}
	wrap := func(stage string, err error) error {
		return fmt.Errorf("%s %s migration %s: %w", stage, direction, m.label(), err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return wrap("begin", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, wrap("rollback", rbErr))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, script); err != nil {
		return wrap("execute", err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return wrap("record", err)
	}
	if err = tx.Commit(); err != nil {
		return wrap("commit", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]struct{}, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]struct{})
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

type migrationFile struct {
	version   int64
	name      string
	direction string
	body      string
}

func parseMigrationFile(fsys fs.FS, file string) (migrationFile, error) {
	base := path.Base(file)
	parts := migrationFileRe.FindStringSubmatch(base)
	if parts == nil {
		return migrationFile{}, fmt.Errorf("invalid migration file name: %s", base)
	}
	version, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return migrationFile{}, fmt.Errorf("parse migration version from %s: %w", base, err)
	}
	raw, err := fs.ReadFile(fsys, file)
	if err != nil {
		return migrationFile{}, fmt.Errorf("read migration %s: %w", file, err)
	}
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return migrationFile{}, fmt.Errorf("migration file is empty: %s", base)
	}
	return migrationFile{version: version, name: parts[2], direction: parts[3], body: body}, nil
}

// loadMigrationsFromFS собирает пары up/down и сортирует их по версии.
func loadMigrationsFromFS(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, migrationsGlob)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no migration files found")
	}

	byVersion := make(map[int64]*migration, len(files)/2)
	for _, file := range files {
		f, err := parseMigrationFile(fsys, file)
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[f.version]
		switch {
		case !ok:
			m = &migration{Version: f.version, Name: f.name}
			byVersion[f.version] = m
		case m.Name != f.name:
			return nil, fmt.Errorf("migration name mismatch for version %d: %s vs %s", f.version, m.Name, f.name)
		}

		target := &m.UpSQL
		if f.direction == "down" {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("duplicate %s migration for version %d", f.direction, f.version)
		}
		*target = f.body
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.label())
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
