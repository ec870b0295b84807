package audit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
	dateLayout        = "2006-01-02"
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, filters TimelineFilters) (Result, error)
	Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
}

// Handler menangani permintaan audit timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	pages   admin.Pages
	page    func(http.Handler) http.Handler
	action  func(http.Handler) http.Handler
	now     func() time.Time
}

// NewHandler membuat handler audit baru. page and action are the redirecting
// and structured super-admin guards.
func NewHandler(logger *slog.Logger, service TimelineService, pages admin.Pages, page, action func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pages: pages, page: page, action: action, now: time.Now}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.page).Get("/", h.handleTimeline)
	r.Group(func(r chi.Router) {
		r.Use(h.action)
		r.Get("/data", h.handleData)
		r.Get("/export.csv", h.handleExport)
	})
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, fields := h.parseFilters(r)
	if fields != nil {
		h.pages.Render(w, r, "Audit", "pages/audit.html", map[string]any{"Errors": fields}, http.StatusBadRequest)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		h.pages.Render(w, r, "Audit", "pages/audit.html", map[string]any{"Errors": map[string]string{"general": "Gagal memuat audit"}}, http.StatusInternalServerError)
		return
	}
	h.pages.Render(w, r, "Audit", "pages/audit.html", map[string]any{"Timeline": buildViewModel(filters, result)}, http.StatusOK)
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	filters, fields := h.parseFilters(r)
	if fields != nil {
		httpx.Invalid(w, fields)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load audit timeline", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, fields := h.parseFilters(r)
	if fields != nil {
		httpx.Invalid(w, fields)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("export audit timeline", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	csvBytes, err := WriteCSV(rows)
	if err != nil {
		h.logger.Error("encode csv", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-timeline.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters returns per-field messages when the query is invalid.
func (h *Handler) parseFilters(r *http.Request) (TimelineFilters, map[string]string) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format(dateLayout)
	}
	toTime, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return TimelineFilters{}, map[string]string{"to": "format tanggal YYYY-MM-DD"}
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format(dateLayout)
	}
	fromTime, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return TimelineFilters{}, map[string]string{"from": "format tanggal YYYY-MM-DD"}
	}
	if fromTime.After(toTime) || toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return TimelineFilters{}, map[string]string{"range": "rentang tanggal maksimal 90 hari"}
	}

	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return TimelineFilters{}, map[string]string{"page": "harus bilangan positif"}
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return TimelineFilters{}, map[string]string{"page_size": "harus bilangan positif"}
		}
		pageSize = min(parsed, maxPageSize)
	}

	return TimelineFilters{
		From:     fromTime,
		To:       toTime,
		Actor:    strings.TrimSpace(q.Get("actor")),
		Entity:   strings.TrimSpace(q.Get("entity")),
		Action:   strings.TrimSpace(q.Get("action")),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func buildViewModel(filters TimelineFilters, result Result) ViewModel {
	return ViewModel{
		Filters: FiltersViewModel{
			From:   filters.From,
			To:     filters.To,
			Actor:  filters.Actor,
			Entity: filters.Entity,
			Action: filters.Action,
		},
		Rows:   result.Rows,
		Paging: result.Paging,
	}
}
