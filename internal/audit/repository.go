package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jurnal-press/jurnal/internal/platform/db"
)

const timelineSQL = `SELECT a.occurred_at, a.actor_id, COALESCE(u.email, ''), COALESCE(t.slug, ''),
	a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
LEFT JOIN tenants t ON t.id = a.tenant_id
WHERE ($1::timestamptz IS NULL OR a.occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR a.occurred_at < $2)
  AND ($3::text IS NULL OR lower(u.email) = lower($3))
  AND ($4::text IS NULL OR a.entity = $4)
  AND ($5::text IS NULL OR a.action = $5)
ORDER BY a.occurred_at DESC, a.id DESC`

// WindowParams selects one page of the timeline. Limit <= 0 returns every row.
type WindowParams struct {
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Actor  pgtype.Text
	Entity pgtype.Text
	Action pgtype.Text
	Offset int
	Limit  int
}

// Repository reads audit_logs.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// Window returns audit rows newest first.
func (r *Repository) Window(ctx context.Context, p WindowParams) ([]TimelineRow, error) {
	query := timelineSQL
	args := []any{p.From, p.To, p.Actor, p.Entity, p.Action}
	if p.Limit > 0 {
		query += ` OFFSET $6 LIMIT $7`
		args = append(args, p.Offset, p.Limit)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			tr   TimelineRow
			meta []byte
		)
		if err := row.Scan(&tr.At, &tr.ActorID, &tr.ActorEmail, &tr.TenantSlug, &tr.Action, &tr.Entity, &tr.EntityID, &meta); err != nil {
			return tr, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &tr.Meta); err != nil {
				return tr, err
			}
		}
		return tr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	return out, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
