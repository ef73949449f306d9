package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"content-calendar/internal/lifecycle"
	"content-calendar/internal/model"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const entriesTable = "calendar_entries"

// Schema creates the entries table. Migrate runs it; it is exported for ops tooling.
const Schema = `CREATE TABLE IF NOT EXISTS calendar_entries (
    id                      UUID PRIMARY KEY,
    keyword                 TEXT NOT NULL UNIQUE,
    article_type            TEXT NOT NULL DEFAULT 'guide',
    search_volume           INTEGER,
    search_volume_source    TEXT NOT NULL DEFAULT '',
    difficulty              INTEGER,
    difficulty_source       TEXT NOT NULL DEFAULT '',
    competitor_count        INTEGER,
    competitor_count_source TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL DEFAULT 'suggested',
    planned_date            DATE,
    priority_score          DOUBLE PRECISION,
    quality_score           DOUBLE PRECISION,
    approved_at             TIMESTAMPTZ,
    approved_by             TEXT,
    decline_reason          TEXT,
    error_message           TEXT NOT NULL DEFAULT '',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    generation_started_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS calendar_entries_status_idx ON calendar_entries (status);
CREATE INDEX IF NOT EXISTS calendar_entries_planned_date_idx ON calendar_entries (planned_date);`

var entryColumns = []string{
	"id", "keyword", "article_type",
	"search_volume", "search_volume_source",
	"difficulty", "difficulty_source",
	"competitor_count", "competitor_count_source",
	"status", "planned_date", "priority_score", "quality_score",
	"approved_at", "approved_by", "decline_reason", "error_message",
	"created_at", "updated_at", "generation_started_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore persists entries in a single Postgres table.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB opened with the "postgres" driver.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *PostgresStore) Insert(ctx context.Context, entry *model.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	now := s.now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	query, args, err := insertQuery(*entry).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, entry.Keyword)
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*model.Entry, error) {
	query, args, err := psql.Select(entryColumns...).From(entriesTable).
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get: %w", err)
	}

	e, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) Find(ctx context.Context, q Query) ([]model.Entry, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := countQuery(q).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	query, args, err := selectQuery(q).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build find: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ConditionalUpdate is a single UPDATE whose WHERE clause carries the status
// precondition, so Postgres row locking makes it atomic per row.
func (s *PostgresStore) ConditionalUpdate(ctx context.Context, ids []uuid.UUID, expected []model.Status, patch model.Patch) ([]model.Entry, error) {
	ids = dedupe(ids)
	if len(ids) == 0 || len(expected) == 0 {
		return nil, nil
	}

	query, args, err := updateQuery(ids, expected, patch, s.now().UTC()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conditional update: %w", err)
	}
	defer rows.Close()

	updated, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return inIDOrder(updated, ids), nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Delete(entriesTable).
		Where(sq.Eq{"id": id.String()}).
		Where(sq.NotEq{"status": string(model.StatusPublished)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing deleted: tell a missing entry apart from a published one.
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := lifecycle.CheckDelete(e.Status); err != nil {
		return err
	}
	return ErrConflict
}

func insertQuery(e model.Entry) sq.InsertBuilder {
	return psql.Insert(entriesTable).Columns(entryColumns...).Values(
		e.ID.String(), e.Keyword, e.ArticleType,
		nullInt(e.SearchVolume), string(e.SearchVolumeSource),
		nullInt(e.Difficulty), string(e.DifficultySource),
		nullInt(e.CompetitorCount), string(e.CompetitorCountSource),
		string(e.Status), nullDate(e.PlannedDate), e.PriorityScore, e.QualityScore,
		e.ApprovedAt, e.ApprovedBy, e.DeclineReason, e.ErrorMessage,
		e.CreatedAt, e.UpdatedAt, e.GenerationStartedAt,
	)
}

func selectQuery(q Query) sq.SelectBuilder {
	b := filtered(psql.Select(entryColumns...).From(entriesTable), q)

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	b = b.OrderBy(fmt.Sprintf("%s %s NULLS LAST", q.sortField(), dir), "created_at ASC", "id ASC")

	if q.Limit > 0 {
		b = b.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		b = b.Offset(uint64(q.Offset))
	}
	return b
}

func countQuery(q Query) sq.SelectBuilder {
	return filtered(psql.Select("COUNT(*)").From(entriesTable), q)
}

func filtered(b sq.SelectBuilder, q Query) sq.SelectBuilder {
	if len(q.Statuses) > 0 {
		b = b.Where(sq.Eq{"status": statusStrings(q.Statuses)})
	}
	if q.From != nil {
		b = b.Where(sq.GtOrEq{"planned_date": q.From.Time()})
	}
	if q.To != nil {
		b = b.Where(sq.LtOrEq{"planned_date": q.To.Time()})
	}
	return b
}

func updateQuery(ids []uuid.UUID, expected []model.Status, patch model.Patch, now time.Time) sq.UpdateBuilder {
	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	return psql.Update(entriesTable).
		SetMap(patchColumns(patch, now)).
		Where(sq.Eq{"id": idStrings}).
		Where(sq.Eq{"status": statusStrings(expected)}).
		Suffix("RETURNING " + strings.Join(entryColumns, ", "))
}

// patchColumns maps a patch to column assignments, matching Patch.Apply:
// clears first, then sets.
func patchColumns(p model.Patch, now time.Time) map[string]interface{} {
	cols := map[string]interface{}{"updated_at": now}

	if p.ClearPlannedDate {
		cols["planned_date"] = nil
	}
	if p.ClearApproval {
		cols["approved_at"] = nil
		cols["approved_by"] = nil
	}

	if p.Status != nil {
		cols["status"] = string(*p.Status)
	}
	if p.PlannedDate != nil {
		cols["planned_date"] = p.PlannedDate.Time()
	}
	if p.ApprovedAt != nil {
		cols["approved_at"] = *p.ApprovedAt
	}
	if p.ApprovedBy != nil {
		cols["approved_by"] = *p.ApprovedBy
	}
	if p.DeclineReason != nil {
		cols["decline_reason"] = *p.DeclineReason
	}
	if p.ErrorMessage != nil {
		cols["error_message"] = *p.ErrorMessage
	}
	if p.GenerationStartedAt != nil {
		cols["generation_started_at"] = *p.GenerationStartedAt
	}
	if p.ArticleType != nil {
		cols["article_type"] = *p.ArticleType
	}
	if p.SearchVolume != nil {
		cols["search_volume"] = *p.SearchVolume
	}
	if p.SearchVolumeSource != nil {
		cols["search_volume_source"] = string(*p.SearchVolumeSource)
	}
	if p.Difficulty != nil {
		cols["difficulty"] = *p.Difficulty
	}
	if p.DifficultySource != nil {
		cols["difficulty_source"] = string(*p.DifficultySource)
	}
	if p.CompetitorCount != nil {
		cols["competitor_count"] = *p.CompetitorCount
	}
	if p.CompetitorCountSource != nil {
		cols["competitor_count_source"] = string(*p.CompetitorCountSource)
	}
	if p.PriorityScore != nil {
		cols["priority_score"] = *p.PriorityScore
	}
	if p.QualityScore != nil {
		cols["quality_score"] = *p.QualityScore
	}
	return cols
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (model.Entry, error) {
	var (
		e                         model.Entry
		status                    string
		volSrc, diffSrc, compSrc  string
		volume, diff, competitors sql.NullInt64
		planned                   sql.NullTime
		priority, quality         sql.NullFloat64
		approvedAt, genStarted    sql.NullTime
		approvedBy, reason        sql.NullString
	)

	err := row.Scan(
		&e.ID, &e.Keyword, &e.ArticleType,
		&volume, &volSrc,
		&diff, &diffSrc,
		&competitors, &compSrc,
		&status, &planned, &priority, &quality,
		&approvedAt, &approvedBy, &reason, &e.ErrorMessage,
		&e.CreatedAt, &e.UpdatedAt, &genStarted,
	)
	if err != nil {
		return model.Entry{}, err
	}

	e.Status = model.Status(status)
	e.SearchVolume = intPtr(volume)
	e.SearchVolumeSource = model.MetricSource(volSrc)
	e.Difficulty = intPtr(diff)
	e.DifficultySource = model.MetricSource(diffSrc)
	e.CompetitorCount = intPtr(competitors)
	e.CompetitorCountSource = model.MetricSource(compSrc)
	if planned.Valid {
		d := model.DateOf(planned.Time)
		e.PlannedDate = &d
	}
	if priority.Valid {
		e.PriorityScore = &priority.Float64
	}
	if quality.Valid {
		e.QualityScore = &quality.Float64
	}
	if approvedAt.Valid {
		e.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		e.ApprovedBy = &approvedBy.String
	}
	if reason.Valid {
		e.DeclineReason = &reason.String
	}
	if genStarted.Valid {
		e.GenerationStartedAt = &genStarted.Time
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return entries, nil
}

func inIDOrder(entries []model.Entry, ids []uuid.UUID) []model.Entry {
	byID := make(map[uuid.UUID]model.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]model.Entry, 0, len(entries))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func statusStrings(statuses []model.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullDate(d *model.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.Time()
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
