package production

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/comalice/sagax/internal/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationTable = "schema_migrations"

// SQLiteRepository provides SQLite-backed saga instance persistence.
// Payloads are stored as JSON text.
type SQLiteRepository[T any] struct {
	sqlDB *sql.DB
}

// OpenSQLiteRepository opens a SQLite database at path and applies migrations.
func OpenSQLiteRepository[T any](path string) (*SQLiteRepository[T], error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteRepository[T]{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *SQLiteRepository[T]) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteRepository[T]) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// Store inserts or replaces the instance row.
func (s *SQLiteRepository[T]) Store(ctx context.Context, rec core.Record[T]) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		return fmt.Errorf("saga id is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload %q: %w", rec.ID, err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO saga_instances (
	id,
	current_state,
	ended,
	payload,
	last_event_id,
	last_event_date,
	version,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	current_state = excluded.current_state,
	ended = excluded.ended,
	payload = excluded.payload,
	last_event_id = excluded.last_event_id,
	last_event_date = excluded.last_event_date,
	version = excluded.version,
	updated_at = excluded.updated_at
`,
		rec.ID,
		string(rec.Current),
		boolToInt(rec.Ended),
		string(payload),
		rec.LastEventID,
		toMillis(rec.LastEventDate),
		rec.Version,
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("store saga %q: %w", rec.ID, err)
	}
	return nil
}

const selectRecord = `
SELECT
	id,
	current_state,
	ended,
	payload,
	last_event_id,
	last_event_date,
	version,
	updated_at
FROM saga_instances
`

// LoadByEntityID returns core.ErrNotFound when no row exists.
func (s *SQLiteRepository[T]) LoadByEntityID(ctx context.Context, id string) (core.Record[T], error) {
	if err := s.ready(ctx); err != nil {
		return core.Record[T]{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, selectRecord+"WHERE id = ?", strings.TrimSpace(id))
	rec, err := scanRecord[T](row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record[T]{}, fmt.Errorf("saga %q: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Record[T]{}, fmt.Errorf("load saga %q: %w", id, err)
	}
	return rec, nil
}

// LoadAll returns every stored instance ordered by id.
func (s *SQLiteRepository[T]) LoadAll(ctx context.Context) ([]core.Record[T], error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, selectRecord+"ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list sagas: %w", err)
	}
	defer rows.Close()

	var recs []core.Record[T]
	for rows.Next() {
		rec, err := scanRecord[T](rows)
		if err != nil {
			return nil, fmt.Errorf("scan saga: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sagas: %w", err)
	}
	return recs, nil
}

// Remove deletes the instance row. Removing a missing instance is not an error.
func (s *SQLiteRepository[T]) Remove(ctx context.Context, rec core.Record[T]) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM saga_instances WHERE id = ?`, rec.ID); err != nil {
		return fmt.Errorf("remove saga %q: %w", rec.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord[T any](row scanner) (core.Record[T], error) {
	var (
		rec           core.Record[T]
		current       string
		ended         int
		payload       string
		lastEventDate int64
		updatedAt     int64
	)
	if err := row.Scan(
		&rec.ID,
		&current,
		&ended,
		&payload,
		&rec.LastEventID,
		&lastEventDate,
		&rec.Version,
		&updatedAt,
	); err != nil {
		return core.Record[T]{}, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return core.Record[T]{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	rec.Current = core.State(current)
	rec.Ended = ended != 0
	rec.LastEventDate = fromMillis(lastEventDate)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// applyMigrations executes embedded migrations from root at most once per file.
func applyMigrations(sqlDB *sql.DB, migrations fs.FS, root string) error {
	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	if _, err := sqlDB.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var applied int
		if err := sqlDB.QueryRow(
			fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE name = ?", migrationTable), file,
		).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied > 0 {
			continue
		}

		content, err := fs.ReadFile(migrations, root+"/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.BeginTx(context.Background(), nil)
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", migrationTable),
			file,
			time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}

var _ core.Repository[any] = (*SQLiteRepository[any])(nil)
