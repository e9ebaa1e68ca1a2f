package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"narrative-timeline/backend/pkg/models"
)

// naiveLayout is how timestamps are written to SQLite text columns.
const naiveLayout = "2006-01-02T15:04:05.999999999"

// SQLiteTimelineStore is a SQLite implementation of the TimelineStore interface.
type SQLiteTimelineStore struct {
	db *sql.DB
	q  statements
}

// OpenSQLite opens (creating if needed) the database file at path.
// Write transactions take the lock up front so concurrent runs queue on
// busy_timeout instead of failing on upgrade.
func OpenSQLite(path string) (*SQLiteTimelineStore, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return NewSQLiteTimelineStore(db), nil
}

// NewSQLiteTimelineStore creates a new SQLiteTimelineStore.
func NewSQLiteTimelineStore(db *sql.DB) *SQLiteTimelineStore {
	return &SQLiteTimelineStore{
		db: db,
		q: newStatements(sq.Question, func(t time.Time) any {
			return t.UTC().Format(naiveLayout)
		}),
	}
}

// Migrate creates the schema when missing.
func (s *SQLiteTimelineStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *SQLiteTimelineStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteTimelineStore) Close() {
	_ = s.db.Close()
}

// CreateTimeline inserts a new timeline.
func (s *SQLiteTimelineStore) CreateTimeline(ctx context.Context, t *models.Timeline) error {
	prepareTimeline(t)
	if err := sqliteExec(ctx, s.db, s.q.insertTimeline(t)); err != nil {
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

// GetTimeline retrieves a timeline and all of its children from one
// read snapshot.
func (s *SQLiteTimelineStore) GetTimeline(ctx context.Context, id string) (*models.Timeline, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := sqliteLoadTimeline(ctx, tx, s.q, id)
	if err != nil {
		return nil, err
	}

	events, err := sqliteEvents(ctx, tx, s.q, id)
	if err != nil {
		return nil, err
	}
	sources, err := sqliteSources(ctx, tx, s.q, id)
	if err != nil {
		return nil, err
	}
	branches, err := sqliteBranches(ctx, tx, s.q, id)
	if err != nil {
		return nil, err
	}

	assemble(t, events, sources, branches)
	return t, nil
}

// GetTimelineStatus retrieves the polling projection of a timeline.
func (s *SQLiteTimelineStore) GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error) {
	query, args, err := s.q.selectStatus(id).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		st       models.TimelineStatus
		status   string
		progress string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&st.ID, &status, &progress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline status: %w", err)
	}
	st.Status = models.Status(status)
	if st.Progress, err = models.ParseProgress(progress); err != nil {
		return nil, err
	}
	return &st, nil
}

// InTx runs fn in a single transaction.
func (s *SQLiteTimelineStore) InTx(ctx context.Context, fn func(tx TimelineTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqliteTx{tx: tx, q: s.q}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func sqliteEvents(ctx context.Context, conn sqliteConn, q statements, timelineID string) ([]*models.Event, error) {
	rows, err := sqliteQuery(ctx, conn, q.selectEvents(timelineID))
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			e         models.Event
			desc      sql.NullString
			date      string
			priority  string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.TimelineID, &e.Title, &desc, &date, &priority, &e.Order, &createdAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			e.Description = &desc.String
		}
		e.Priority = models.Priority(priority)
		if e.EventDate, err = parseStoredTime(date); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func sqliteSources(ctx context.Context, conn sqliteConn, q statements, timelineID string) ([]*models.Source, error) {
	rows, err := sqliteQuery(ctx, conn, q.selectSources(timelineID))
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		var (
			src       models.Source
			branchID  sql.NullString
			published sql.NullString
			claims    string
			createdAt string
		)
		if err := rows.Scan(&src.ID, &src.EventID, &branchID, &src.URL, &src.Outlet, &src.CredibilityScore,
			&published, &claims, &src.Position, &createdAt); err != nil {
			return nil, err
		}
		if branchID.Valid {
			src.BranchID = &branchID.String
		}
		if published.Valid {
			ts, err := parseStoredTime(published.String)
			if err != nil {
				return nil, err
			}
			src.PublishDate = &ts
		}
		if src.Claims, err = decodeClaims([]byte(claims)); err != nil {
			return nil, err
		}
		if src.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

func sqliteBranches(ctx context.Context, conn sqliteConn, q statements, timelineID string) ([]*models.Branch, error) {
	rows, err := sqliteQuery(ctx, conn, q.selectBranches(timelineID))
	if err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", err)
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		var (
			b         models.Branch
			evidence  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&b.ID, &b.EventID, &b.Narrative, &b.CredibilityScore, &evidence,
			&b.SourceCount, &b.Position, &createdAt); err != nil {
			return nil, err
		}
		if evidence.Valid {
			b.Evidence = &evidence.String
		}
		if b.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		branches = append(branches, &b)
	}
	return branches, rows.Err()
}

type sqliteTx struct {
	tx *sql.Tx
	q  statements
}

func (t *sqliteTx) LoadTimeline(ctx context.Context, id string) (*models.Timeline, error) {
	return sqliteLoadTimeline(ctx, t.tx, t.q, id)
}

func (t *sqliteTx) UpdateTimeline(ctx context.Context, tl *models.Timeline) error {
	tl.UpdatedAt = time.Now().UTC()
	query, args, err := t.q.updateTimeline(tl).ToSql()
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update timeline: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) CreateEvent(ctx context.Context, e *models.Event) error {
	prepareEvent(e)
	if err := sqliteExec(ctx, t.tx, t.q.insertEvent(e)); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateSource(ctx context.Context, src *models.Source) error {
	prepareSource(src)
	b, err := t.q.insertSource(src)
	if err != nil {
		return err
	}
	if err := sqliteExec(ctx, t.tx, b); err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

func (t *sqliteTx) CreateBranch(ctx context.Context, b *models.Branch) error {
	prepareBranch(b)
	if err := sqliteExec(ctx, t.tx, t.q.insertBranch(b)); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

// sqliteConn is satisfied by both *sql.DB and *sql.Tx.
type sqliteConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func sqliteExec(ctx context.Context, conn sqliteConn, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, query, args...)
	return err
}

func sqliteQuery(ctx context.Context, conn sqliteConn, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return conn.QueryContext(ctx, query, args...)
}

func sqliteLoadTimeline(ctx context.Context, conn sqliteConn, q statements, id string) (*models.Timeline, error) {
	query, args, err := q.selectTimeline(id).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		t          models.Timeline
		status     string
		progress   string
		rangeStart sql.NullString
		rangeEnd   sql.NullString
		createdAt  string
		updatedAt  string
	)
	err = conn.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Topic, &t.Query, &status, &progress,
		&rangeStart, &rangeEnd, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}

	t.Status = models.Status(status)
	if t.Progress, err = models.ParseProgress(progress); err != nil {
		return nil, err
	}
	if t.DateRangeStart, err = parseOptionalTime(rangeStart); err != nil {
		return nil, err
	}
	if t.DateRangeEnd, err = parseOptionalTime(rangeEnd); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseStoredTime(updatedAt); err != nil {
		return nil, err
	}
	t.Events = []*models.Event{}
	return &t, nil
}

func parseStoredTime(s string) (time.Time, error) {
	ts, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return ts, nil
}

func parseOptionalTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	ts, err := parseStoredTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
