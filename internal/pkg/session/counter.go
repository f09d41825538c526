// Package session counts lines written by an agent session.
//
// The session total grows with each recorded write. When a task fires,
// the current total is stored as the task mark, so "lines since the last run"
// is the difference between the total and the mark of the task.
// Tasks watching the same session are independent.
package session

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite"

	"github.com/keboola/devgate/internal/pkg/log"
	"github.com/keboola/devgate/internal/pkg/session/migrations"
	"github.com/keboola/devgate/internal/pkg/utils/errors"
)

const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// DefaultPath of the database, sessions do not outlive the machine.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), "devgate", "sessions.db")
}

type Counter struct {
	logger log.Logger
	clock  clockwork.Clock
	db     *sql.DB
}

type dependencies interface {
	Logger() log.Logger
	Clock() clockwork.Clock
}

// Open the database and apply migrations, the parent directory is created if needed.
func Open(ctx context.Context, d dependencies, path string) (*Counter, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session database path is required")
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Errorf(`cannot create dir for session database "%s": %w`, path, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+dsnParams)
	if err != nil {
		return nil, errors.Errorf(`cannot open session database "%s": %w`, path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Errorf(`cannot open session database "%s": %w`, path, err)
	}
	if err := applyMigrations(ctx, d.Clock(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, errors.PrefixErrorf(err, `cannot migrate session database "%s"`, path)
	}

	return &Counter{
		logger: d.Logger().WithComponent("session"),
		clock:  d.Clock(),
		db:     db,
	}, nil
}

// Disabled returns a counter without a database, writes are ignored and all counts are 0.
// It is used if the database cannot be opened.
func Disabled(d dependencies) *Counter {
	return &Counter{logger: d.Logger().WithComponent("session"), clock: d.Clock()}
}

// Enabled returns false if the counter has no database.
func (c *Counter) Enabled() bool {
	return c != nil && c.db != nil
}

func (c *Counter) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.db.Close()
}

// RecordWrite adds written lines to the session total.
// A missing session id is ignored.
func (c *Counter) RecordWrite(ctx context.Context, sessionID string, lines int64) error {
	if !c.Enabled() || sessionID == "" || lines <= 0 {
		return nil
	}
	_, err := c.db.ExecContext(ctx, `
INSERT INTO session_totals (session_id, lines, updated_at) VALUES (?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET lines = lines + excluded.lines, updated_at = excluded.updated_at`,
		sessionID, lines, c.now(),
	)
	if err != nil {
		return errors.Errorf(`cannot record write of session "%s": %w`, sessionID, err)
	}
	return nil
}

// RecordTaskRun zeroes the counter of the task in the session, other tasks are not affected.
func (c *Counter) RecordTaskRun(ctx context.Context, sessionID, taskKey string) error {
	if !c.Enabled() || sessionID == "" {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf(`cannot record task run: %w`, err)
	}
	defer func() { _ = tx.Rollback() }()

	// The session row is needed for pruning of the marks
	if _, err := tx.ExecContext(ctx, `
INSERT INTO session_totals (session_id, lines, updated_at) VALUES (?, 0, ?)
ON CONFLICT (session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, c.now(),
	); err != nil {
		return errors.Errorf(`cannot record task run: %w`, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO task_marks (session_id, task_key, lines_at_run)
VALUES (?, ?, (SELECT lines FROM session_totals WHERE session_id = ?))
ON CONFLICT (session_id, task_key) DO UPDATE SET lines_at_run = excluded.lines_at_run`,
		sessionID, taskKey, sessionID,
	); err != nil {
		return errors.Errorf(`cannot record task run: %w`, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf(`cannot record task run: %w`, err)
	}
	return nil
}

// SinceLastRun returns lines written in the session since the task last fired.
// A missing session id, a disabled counter, or an unreadable database, yields 0.
func (c *Counter) SinceLastRun(ctx context.Context, sessionID, taskKey string) int64 {
	if !c.Enabled() || sessionID == "" {
		return 0
	}

	var lines int64
	err := c.db.QueryRowContext(ctx, `
SELECT t.lines - COALESCE((SELECT m.lines_at_run FROM task_marks m WHERE m.session_id = t.session_id AND m.task_key = ?), 0)
FROM session_totals t WHERE t.session_id = ?`,
		taskKey, sessionID,
	).Scan(&lines)
	if errors.Is(err, sql.ErrNoRows) {
		return 0
	} else if err != nil {
		c.logger.With(attribute.String("session.id", sessionID), attribute.String("task.key", taskKey)).Warnf(ctx, `Cannot read session counter: %s`, err.Error())
		return 0
	}
	if lines < 0 {
		return 0
	}
	return lines
}

// Total returns all lines written in the session.
func (c *Counter) Total(ctx context.Context, sessionID string) int64 {
	if !c.Enabled() || sessionID == "" {
		return 0
	}
	var lines int64
	err := c.db.QueryRowContext(ctx, `SELECT lines FROM session_totals WHERE session_id = ?`, sessionID).Scan(&lines)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		c.logger.With(attribute.String("session.id", sessionID)).Warnf(ctx, `Cannot read session counter: %s`, err.Error())
	}
	return lines
}

// Prune deletes sessions without activity for longer than the ttl and returns their count.
func (c *Counter) Prune(ctx context.Context, ttl time.Duration) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	threshold := c.clock.Now().Add(-ttl).UTC().UnixMilli()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Errorf(`cannot prune sessions: %w`, err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM session_totals WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, errors.Errorf(`cannot prune sessions: %w`, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_marks WHERE session_id NOT IN (SELECT session_id FROM session_totals)`); err != nil {
		return 0, errors.Errorf(`cannot prune sessions: %w`, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Errorf(`cannot prune sessions: %w`, err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Errorf(`cannot prune sessions: %w`, err)
	}
	if count > 0 {
		c.logger.Debugf(ctx, `Pruned %d inactive sessions.`, count)
	}
	return count, nil
}

func (c *Counter) now() int64 {
	return c.clock.Now().UTC().UnixMilli()
}
