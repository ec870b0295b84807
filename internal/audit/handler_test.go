package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/view"
)

type stubTimelineService struct {
	result      Result
	exportRows  []TimelineRow
	err         error
	lastFilters TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters TimelineFilters) (Result, error) {
	s.lastFilters = filters
	return s.result, s.err
}

func (s *stubTimelineService) Export(_ context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, s.err
}

func passthrough(next http.Handler) http.Handler { return next }

func newAuditRouter(t *testing.T, service *stubTimelineService) http.Handler {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, service, admin.Pages{Templates: engine, Logger: logger}, passthrough, passthrough)
	h.now = func() time.Time { return time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route(PathTimeline, h.MountRoutes)
	return r
}

func TestTimelineRendersRows(t *testing.T) {
	rows := []TimelineRow{{At: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), ActorEmail: "root@jurnal.test", Action: "tenant.create", Entity: "tenant", EntityID: "1"}}
	service := &stubTimelineService{result: Result{Rows: rows, Paging: PagingInfo{Page: 1, PageSize: 20}}}
	router := newAuditRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathTimeline+"/?from=2024-03-01&to=2024-03-15", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "tenant.create")
	assert.Contains(t, body, "root@jurnal.test")
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	router := newAuditRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathTimeline+"/data", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), service.lastFilters.To)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), service.lastFilters.From)
	assert.Equal(t, defaultPageSize, service.lastFilters.PageSize)
}

func TestTimelineDataRejectsBadFilters(t *testing.T) {
	cases := map[string]string{
		"?from=2024-03-20&to=2024-03-01": "range",
		"?from=2023-01-01&to=2024-03-01": "range",
		"?to=15-03-2024":                 "to",
		"?page=0":                        "page",
		"?page_size=abc":                 "page_size",
	}
	for query, field := range cases {
		service := &stubTimelineService{}
		router := newAuditRouter(t, service)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathTimeline+"/data"+query, nil))

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
		var res httpx.ActionResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.OK)
		assert.Contains(t, res.Fields, field, query)
	}
}

func TestTimelineDataHidesStoreErrors(t *testing.T) {
	service := &stubTimelineService{err: errors.New("pq: relation audit_logs does not exist")}
	router := newAuditRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathTimeline+"/data", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "audit_logs")
	assert.Contains(t, rec.Body.String(), httpx.MsgInternal)
}

func TestExportWritesCSV(t *testing.T) {
	actor := uuid.New()
	service := &stubTimelineService{exportRows: []TimelineRow{{
		At:         time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
		ActorID:    actor,
		ActorEmail: "root@jurnal.test",
		TenantSlug: "unpad",
		Action:     "membership.upsert",
		Entity:     "tenant_user",
		EntityID:   "x",
		Meta:       map[string]any{"role": "editor"},
	}}}
	router := newAuditRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, PathTimeline+"/export.csv?actor=root@jurnal.test", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "root@jurnal.test", service.lastFilters.Actor)

	records, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, actor.String(), records[1][1])
	assert.Equal(t, "unpad", records[1][3])
	assert.JSONEq(t, `{"role":"editor"}`, records[1][7])
}
