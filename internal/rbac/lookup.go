package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/platform/db"
	"github.com/jurnal-press/jurnal/internal/shared"
)

// Lookup consults grant sources in order and stops at the first grant.
type Lookup struct {
	sources []GrantSource
	logger  *slog.Logger
}

// NewLookup constructs a Lookup over sources.
func NewLookup(logger *slog.Logger, sources ...GrantSource) *Lookup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lookup{sources: sources, logger: logger}
}

// NewSchemaLookup wires the current schema first and the legacy schema second.
func NewSchemaLookup(q db.Querier, logger *slog.Logger) *Lookup {
	return NewLookup(logger, NewCurrentSchemaSource(q), NewLegacySchemaSource(q))
}

// Check reports whether userID holds roleKey. A failing source is logged and
// the next one is still consulted. When no source grants the role and at least
// one failed, the joined failures are returned wrapped in ErrLookupFailed.
func (l *Lookup) Check(ctx context.Context, userID uuid.UUID, roleKey string) (Decision, error) {
	roleKey = normalizeRole(roleKey)
	var (
		decision Decision
		errs     []error
	)
	for _, src := range l.sources {
		decision.Consulted = append(decision.Consulted, src.Name())
		granted, err := src.HasRole(ctx, userID, roleKey)
		if err != nil {
			l.logger.Warn("rbac: grant source failed",
				slog.String("source", src.Name()),
				slog.String("role", roleKey),
				slog.String("user_id", userID.String()),
				slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if granted {
			decision.Granted = true
			decision.Source = src.Name()
			return decision, nil
		}
	}
	if len(errs) > 0 {
		return decision, fmt.Errorf("%w: %w", ErrLookupFailed, errors.Join(errs...))
	}
	return decision, nil
}

// HasRole is Check reduced to a boolean.
func (l *Lookup) HasRole(ctx context.Context, userID uuid.UUID, roleKey string) (bool, error) {
	d, err := l.Check(ctx, userID, roleKey)
	return d.Granted, err
}

// IsSuperAdmin reports whether userID holds the platform super-admin role.
func (l *Lookup) IsSuperAdmin(ctx context.Context, userID uuid.UUID) (Decision, error) {
	return l.Check(ctx, userID, shared.RoleSuperAdmin)
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
