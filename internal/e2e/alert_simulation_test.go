package e2e

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/authz"
	"github.com/jurnal-press/jurnal/internal/observability"
	"github.com/jurnal-press/jurnal/internal/rbac"
)

type alertScenario struct {
	name       string
	severity   string
	outcome    string
	threshold  float64
	window     time.Duration
	runbookRef string
}

type fixedResolver struct {
	p   auth.Principal
	err error
}

func (f fixedResolver) Resolve(context.Context, auth.Evidence) (auth.Principal, error) {
	return f.p, f.err
}

type toggledRoles struct{ down bool }

func (r *toggledRoles) IsSuperAdmin(context.Context, uuid.UUID) (rbac.Decision, error) {
	if r.down {
		return rbac.Decision{}, fmt.Errorf("%w: connection refused", rbac.ErrLookupFailed)
	}
	return rbac.Decision{Granted: true, Source: rbac.SourceCurrentSchema}, nil
}

func TestAuthzAlertSimulationProducesFiringAndResolvedLogs(t *testing.T) {
	scenarios := []alertScenario{
		{
			name:       "AuthzErrorRate",
			severity:   "critical",
			outcome:    authz.OutcomeError,
			threshold:  0.05,
			window:     5 * time.Minute,
			runbookRef: "docs/runbook-authz.md#error-rate",
		},
		{
			name:       "AuthzIndeterminateSpike",
			severity:   "warning",
			outcome:    authz.OutcomeIndeterminate,
			threshold:  0.05,
			window:     10 * time.Minute,
			runbookRef: "docs/runbook-authz.md#indeterminate-spike",
		},
	}

	runbook, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-authz.md"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	principal := auth.Principal{ID: uuid.New(), Email: "root@jurnal.test", Source: auth.SourceSession}
	propagating := &auth.UnauthenticatedError{
		Reason: auth.ReasonInvalidCredential,
		Cause:  &auth.Error{Code: auth.CodeSessionNotPropagated, Status: 401, Message: "session not yet visible"},
	}

	var logBuilder strings.Builder
	for _, scenario := range scenarios {
		anchor := scenario.runbookRef[strings.Index(scenario.runbookRef, "#")+1:]
		require.Contains(t, string(runbook), "## "+anchor, "runbook section for %s", scenario.name)

		metrics := observability.NewMetrics()
		roles := &toggledRoles{}
		healthy := authz.NewGuard(fixedResolver{p: principal}, roles, nil, metrics, logger, authz.GuardConfig{})
		degraded := healthy
		if scenario.outcome == authz.OutcomeIndeterminate {
			degraded = authz.NewGuard(fixedResolver{err: propagating}, roles, nil, metrics, logger, authz.GuardConfig{})
		} else {
			roles.down = true
		}

		for i := 0; i < 10; i++ {
			degraded.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{})
		}
		roles.down = false
		for i := 0; i < 10; i++ {
			healthy.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{})
		}

		bad := decisions(t, metrics, scenario.outcome)
		good := decisions(t, metrics, authz.OutcomeAuthorized)
		ratio := bad / (bad + good)
		if ratio <= scenario.threshold {
			t.Fatalf("%s: ratio %.2f did not cross threshold %.2f", scenario.name, ratio, scenario.threshold)
		}
		logBuilder.WriteString(renderAlertLog("FIRING", scenario, ratio))

		// Recovery: only healthy decisions inside the next window.
		recovered := observability.NewMetrics()
		again := authz.NewGuard(fixedResolver{p: principal}, roles, nil, recovered, logger, authz.GuardConfig{})
		for i := 0; i < 20; i++ {
			again.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{})
		}
		after := decisions(t, recovered, scenario.outcome)
		if after != 0 {
			t.Fatalf("%s: expected no %s decisions after recovery, got %.0f", scenario.name, scenario.outcome, after)
		}
		logBuilder.WriteString(renderAlertLog("RESOLVED", scenario, 0))
	}

	logOutput := logBuilder.String()
	for _, scenario := range scenarios {
		if !strings.Contains(logOutput, "FIRING "+scenario.name) {
			t.Fatalf("expected log to contain firing entry for %s", scenario.name)
		}
		if !strings.Contains(logOutput, "RESOLVED "+scenario.name) {
			t.Fatalf("expected log to contain resolved entry for %s", scenario.name)
		}
		if !strings.Contains(logOutput, "runbook="+scenario.runbookRef) {
			t.Fatalf("expected runbook reference for %s", scenario.name)
		}
	}
}

func TestAuthzAlertIgnoresPlainDenials(t *testing.T) {
	metrics := observability.NewMetrics()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	guard := authz.NewGuard(fixedResolver{err: &auth.UnauthenticatedError{Reason: auth.ReasonNoCredential}}, &toggledRoles{}, nil, metrics, logger, authz.GuardConfig{})
	for i := 0; i < 5; i++ {
		res := guard.CheckSuperAdmin(context.Background(), nil, auth.Evidence{})
		require.False(t, res.Authorized)
		require.False(t, errors.Is(res.Diagnostic.Err, rbac.ErrLookupFailed))
	}
	require.Equal(t, 5.0, decisions(t, metrics, authz.OutcomeUnauthorized))
	require.Equal(t, 0.0, decisions(t, metrics, authz.OutcomeError))
}

func decisions(t *testing.T, m *observability.Metrics, outcome string) float64 {
	t.Helper()
	gatherer, ok := m.Registerer().(prometheus.Gatherer)
	require.True(t, ok)
	families, err := gatherer.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != "jurnal_authz_decisions_total" {
			continue
		}
		for _, metric := range fam.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["entry"] == authz.EntryStructured && labels["outcome"] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func renderAlertLog(state string, scenario alertScenario, actual float64) string {
	return fmt.Sprintf("%s %s severity=%s actual=%.2f threshold=%.2f window=%s runbook=%s\n",
		state, scenario.name, scenario.severity, actual, scenario.threshold, scenario.window, scenario.runbookRef)
}
