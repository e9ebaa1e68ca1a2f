package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"narrative-timeline/backend/pkg/models"
)

// PostgresTimelineStore is a PostgreSQL implementation of the TimelineStore interface.
type PostgresTimelineStore struct {
	db *pgxpool.Pool
	q  statements
}

// NewPostgresTimelineStore creates a new PostgresTimelineStore.
func NewPostgresTimelineStore(db *pgxpool.Pool) *PostgresTimelineStore {
	return &PostgresTimelineStore{
		db: db,
		q: newStatements(sq.Dollar, func(t time.Time) any {
			return t.UTC()
		}),
	}
}

// Migrate creates the schema when missing.
func (s *PostgresTimelineStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *PostgresTimelineStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the pool.
func (s *PostgresTimelineStore) Close() {
	s.db.Close()
}

// CreateTimeline inserts a new timeline.
func (s *PostgresTimelineStore) CreateTimeline(ctx context.Context, t *models.Timeline) error {
	prepareTimeline(t)
	if err := pgExec(ctx, s.db, s.q.insertTimeline(t)); err != nil {
		return fmt.Errorf("failed to create timeline: %w", err)
	}
	return nil
}

// GetTimeline retrieves a timeline and all of its children from one snapshot.
func (s *PostgresTimelineStore) GetTimeline(ctx context.Context, id string) (*models.Timeline, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := pgLoadTimeline(ctx, tx, s.q.selectTimeline(id))
	if err != nil {
		return nil, err
	}
	events, err := pgEvents(ctx, tx, s.q.selectEvents(id))
	if err != nil {
		return nil, err
	}
	sources, err := pgSources(ctx, tx, s.q.selectSources(id))
	if err != nil {
		return nil, err
	}
	branches, err := pgBranches(ctx, tx, s.q.selectBranches(id))
	if err != nil {
		return nil, err
	}

	assemble(t, events, sources, branches)
	return t, nil
}

// GetTimelineStatus retrieves the polling projection of a timeline.
func (s *PostgresTimelineStore) GetTimelineStatus(ctx context.Context, id string) (*models.TimelineStatus, error) {
	query, args, err := s.q.selectStatus(id).ToSql()
	if err != nil {
		return nil, err
	}
	var (
		st       models.TimelineStatus
		status   string
		progress string
	)
	err = s.db.QueryRow(ctx, query, args...).Scan(&st.ID, &status, &progress)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresTimelineStore) InTx(ctx context.Context, fn func(tx TimelineTx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, q: s.q}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
	q  statements
}

func (t *pgTx) LoadTimeline(ctx context.Context, id string) (*models.Timeline, error) {
	return pgLoadTimeline(ctx, t.tx, t.q.selectTimeline(id).Suffix("FOR UPDATE"))
}

func (t *pgTx) UpdateTimeline(ctx context.Context, tl *models.Timeline) error {
	tl.UpdatedAt = time.Now().UTC()
	query, args, err := t.q.updateTimeline(tl).ToSql()
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update timeline: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateEvent(ctx context.Context, e *models.Event) error {
	prepareEvent(e)
	if err := pgExec(ctx, t.tx, t.q.insertEvent(e)); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (t *pgTx) CreateSource(ctx context.Context, src *models.Source) error {
	prepareSource(src)
	b, err := t.q.insertSource(src)
	if err != nil {
		return err
	}
	if err := pgExec(ctx, t.tx, b); err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}
	return nil
}

func (t *pgTx) CreateBranch(ctx context.Context, b *models.Branch) error {
	prepareBranch(b)
	if err := pgExec(ctx, t.tx, t.q.insertBranch(b)); err != nil {
		return fmt.Errorf("failed to create branch: %w", err)
	}
	return nil
}

// pgConn is satisfied by *pgxpool.Pool and pgx.Tx.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgExec(ctx context.Context, conn pgConn, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = conn.Exec(ctx, query, args...)
	return err
}

func pgQuery(ctx context.Context, conn pgConn, b sq.Sqlizer) (pgx.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return conn.Query(ctx, query, args...)
}

func pgLoadTimeline(ctx context.Context, conn pgConn, b sq.Sqlizer) (*models.Timeline, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var (
		t        models.Timeline
		status   string
		progress string
	)
	err = conn.QueryRow(ctx, query, args...).Scan(&t.ID, &t.Topic, &t.Query, &status, &progress,
		&t.DateRangeStart, &t.DateRangeEnd, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	t.Status = models.Status(status)
	if t.Progress, err = models.ParseProgress(progress); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Events = []*models.Event{}
	return &t, nil
}

func pgEvents(ctx context.Context, conn pgConn, b sq.Sqlizer) ([]*models.Event, error) {
	rows, err := pgQuery(ctx, conn, b)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var (
			e        models.Event
			priority string
		)
		if err := rows.Scan(&e.ID, &e.TimelineID, &e.Title, &e.Description, &e.EventDate,
			&priority, &e.Order, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Priority = models.Priority(priority)
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, &e)
	}
	return events, rows.Err()
}

func pgSources(ctx context.Context, conn pgConn, b sq.Sqlizer) ([]*models.Source, error) {
	rows, err := pgQuery(ctx, conn, b)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		var (
			src    models.Source
			claims []byte
		)
		if err := rows.Scan(&src.ID, &src.EventID, &src.BranchID, &src.URL, &src.Outlet, &src.CredibilityScore,
			&src.PublishDate, &claims, &src.Position, &src.CreatedAt); err != nil {
			return nil, err
		}
		if src.Claims, err = decodeClaims(claims); err != nil {
			return nil, err
		}
		src.CreatedAt = src.CreatedAt.UTC()
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

func pgBranches(ctx context.Context, conn pgConn, b sq.Sqlizer) ([]*models.Branch, error) {
	rows, err := pgQuery(ctx, conn, b)
	if err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", err)
	}
	defer rows.Close()

	var branches []*models.Branch
	for rows.Next() {
		var br models.Branch
		if err := rows.Scan(&br.ID, &br.EventID, &br.Narrative, &br.CredibilityScore, &br.Evidence,
			&br.SourceCount, &br.Position, &br.CreatedAt); err != nil {
			return nil, err
		}
		br.CreatedAt = br.CreatedAt.UTC()
		branches = append(branches, &br)
	}
	return branches, rows.Err()
}
