// Package admin runs super-admin write actions: decode, validate, claim the
// idempotency key, apply, audit, revalidate cached pages and answer with a
// tagged result.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/shared"
)

// Revalidator drops cached output for page paths.
type Revalidator interface {
	Revalidate(ctx context.Context, paths ...string) error
}

// Deps collects collaborators shared by every action.
type Deps struct {
	Logger      *slog.Logger
	Audit       shared.AuditRecorder
	Idempotency shared.IdempotencyGuard
	Revalidator Revalidator
	Validator   *validator.Validate
}

// Outcome is what Apply reports back for auditing and the response body.
type Outcome struct {
	EntityID string
	TenantID *uuid.UUID
	Data     any
	Meta     map[string]any
	// Paths are revalidated in addition to Action.Paths.
	Paths []string
}

// Action describes one write operation taking a JSON payload T.
type Action[T any] struct {
	Name   string
	Entity string
	Status int
	Paths  []string
	Apply  func(ctx context.Context, actor auth.Principal, in T) (Outcome, error)
}

// Handle adapts an Action into an HTTP handler. It expects the principal to be
// in the request context, as placed there by the action guard.
func Handle[T any](deps Deps, action Action[T]) http.HandlerFunc {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	validate := deps.Validator
	if validate == nil {
		validate = NewValidator()
	}
	status := action.Status
	if status == 0 {
		status = http.StatusOK
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := auth.PrincipalFromContext(ctx)
		if !ok {
			httpx.Fail(w, http.StatusUnauthorized, httpx.MsgUnauthorized)
			return
		}

		var in T
		if err := httpx.DecodeJSON(r, &in); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(in); err != nil {
			if fields := FieldMessages(err); len(fields) > 0 {
				httpx.Invalid(w, fields)
				return
			}
			httpx.Fail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
		if key != "" && deps.Idempotency != nil {
			if err := deps.Idempotency.Claim(ctx, key, action.Name, actor.ID); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.Fail(w, http.StatusConflict, "Duplicate request")
					return
				}
				logger.Error("admin: claim idempotency key", slog.String("action", action.Name), slog.Any("error", err))
				httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
				return
			}
		}

		out, err := action.Apply(ctx, actor, in)
		if err != nil {
			if key != "" && deps.Idempotency != nil {
				if relErr := deps.Idempotency.Release(ctx, key, action.Name, actor.ID); relErr != nil {
					logger.Warn("admin: release idempotency key", slog.String("action", action.Name), slog.Any("error", relErr))
				}
			}
			writeError(w, logger, action.Name, err)
			return
		}

		if deps.Audit != nil {
			entry := shared.AuditLog{
				ActorID:  actor.ID,
				TenantID: out.TenantID,
				Action:   action.Name,
				Entity:   action.Entity,
				EntityID: out.EntityID,
				Meta:     out.Meta,
			}
			if err := deps.Audit.Record(ctx, entry); err != nil {
				logger.Error("admin: audit record", slog.String("action", action.Name), slog.Any("error", err))
			}
		}

		if deps.Revalidator != nil {
			paths := append(append([]string{}, action.Paths...), out.Paths...)
			if err := deps.Revalidator.Revalidate(ctx, paths...); err != nil {
				logger.Warn("admin: revalidate", slog.String("action", action.Name), slog.Any("paths", paths), slog.Any("error", err))
			}
		}

		httpx.OK(w, status, out.Data)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, action string, err error) {
	var fields shared.FieldErrors
	switch {
	case errors.As(err, &fields):
		httpx.Invalid(w, fields)
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, httpx.ErrNotFound):
		httpx.Fail(w, http.StatusNotFound, "Not found")
	case errors.Is(err, shared.ErrConflict), errors.Is(err, httpx.ErrDuplicate):
		httpx.Fail(w, http.StatusConflict, "Already exists")
	default:
		logger.Error("admin: action failed", slog.String("action", action), slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
	}
}
