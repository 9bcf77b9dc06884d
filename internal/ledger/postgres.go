package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

const table = "published_posts"

const schema = `CREATE TABLE IF NOT EXISTS published_posts (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT        NOT NULL DEFAULT '',
	platform    TEXT        NOT NULL,
	target_id   TEXT        NOT NULL DEFAULT '',
	keyword     TEXT        NOT NULL DEFAULT '',
	title       TEXT        NOT NULL,
	post_id     TEXT        NOT NULL DEFAULT '',
	status      TEXT        NOT NULL,
	url         TEXT        NOT NULL DEFAULT '',
	publish_at  TIMESTAMPTZ,
	index_state TEXT        NOT NULL DEFAULT 'none',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS published_posts_index_state ON published_posts (index_state, id);`

var columns = []string{
	"id", "run_id", "platform", "target_id", "keyword", "title",
	"post_id", "status", "url", "publish_at", "index_state", "created_at",
}

// Postgres stores entries in the published_posts table.
type Postgres struct {
	db  *sql.DB
	sb  squirrel.StatementBuilderType
	now func() time.Time
}

var _ Ledger = (*Postgres)(nil)

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return NewPostgres(db), nil
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{
		db:  db,
		sb:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now: time.Now,
	}
}

// Migrate creates the table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "migrate ledger")
}

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) insertQuery(e Entry) (string, []any, error) {
	if e.IndexState == "" {
		e.IndexState = IndexNone
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.now()
	}
	return p.sb.Insert(table).
		Columns(columns[1:]...).
		Values(e.RunID, e.Platform, e.TargetID, e.Keyword, e.Title,
			e.PostID, e.Status, e.URL, e.PublishAt, string(e.IndexState), e.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
}

func (p *Postgres) Record(ctx context.Context, e Entry) (int64, error) {
	query, args, err := p.insertQuery(e)
	if err != nil {
		return 0, errors.Wrap(err, "build insert")
	}
	var id int64
	if err := p.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, errors.Wrap(err, "insert ledger entry")
	}
	return id, nil
}

func (p *Postgres) markQuery(id int64, state IndexState) (string, []any, error) {
	return p.sb.Update(table).
		Set("index_state", string(state)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
}

func (p *Postgres) MarkPending(ctx context.Context, id int64) error {
	return p.mark(ctx, id, IndexPending)
}

func (p *Postgres) MarkIndexed(ctx context.Context, id int64) error {
	return p.mark(ctx, id, IndexIndexed)
}

func (p *Postgres) mark(ctx context.Context, id int64, state IndexState) error {
	query, args, err := p.markQuery(id, state)
	if err != nil {
		return errors.Wrap(err, "build update")
	}
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "mark entry %d %s", id, state)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) pendingQuery(limit int) (string, []any, error) {
	q := p.sb.Select(columns...).
		From(table).
		Where(squirrel.Eq{"index_state": string(IndexPending)}).
		OrderBy("id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q.ToSql()
}

func (p *Postgres) Pending(ctx context.Context, limit int) ([]Entry, error) {
	query, args, err := p.pendingQuery(limit)
	if err != nil {
		return nil, errors.Wrap(err, "build select")
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select pending")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e         Entry
			state     string
			publishAt sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Platform, &e.TargetID, &e.Keyword, &e.Title,
			&e.PostID, &e.Status, &e.URL, &publishAt, &state, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan ledger entry")
		}
		if publishAt.Valid {
			t := publishAt.Time
			e.PublishAt = &t
		}
		e.IndexState = IndexState(state)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate pending")
}
