package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shiftcal/internal/config"
	"shiftcal/internal/ics"
	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
	"shiftcal/internal/pattern"
)

const maxImportBodyBytes = 16 << 20

// RecordStore is the read side of the shift store.
type RecordStore interface {
	ListShifts(ctx context.Context, team string, from, to model.Date) ([]model.ShiftRecord, error)
}

// ShiftImporter is the write side used by POST /import.
type ShiftImporter interface {
	Import(ctx context.Context, body []byte, team string) (ics.ImportResult, error)
	ImportFromURL(ctx context.Context, url, team string) (ics.ImportResult, error)
}

// Options wires a Server. Calculator is required; a nil Records or
// Importer disables the endpoints that need them, a nil Cache disables
// response caching.
type Options struct {
	Calculator *pattern.Calculator
	Records    RecordStore
	Importer   ShiftImporter
	Cache      ResponseCache
	Export     ics.ExportOptions
	BasicAuth  *config.BasicAuthConfig
}

// Server exposes the shift calculator, exporter and importer over HTTP.
type Server struct {
	calc     *pattern.Calculator
	records  RecordStore
	importer ShiftImporter
	cache    ResponseCache
	export   ics.ExportOptions
	auth     *config.BasicAuthConfig

	router *chi.Mux
}

// NewServer constructs a new Server.
func NewServer(opts Options) *Server {
	s := &Server{
		calc:     opts.Calculator,
		records:  opts.Records,
		importer: opts.Importer,
		cache:    opts.Cache,
		export:   opts.Export,
		auth:     opts.BasicAuth,
		router:   chi.NewRouter(),
	}
	if s.export.Location == nil {
		s.export.Location = s.calc.Location()
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	// /health is always exposed without authentication.
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		if basicAuthEnabled(s.auth) {
			appLog.Info("HTTP basic auth enabled", "username", s.auth.Username)
			r.Use(basicAuth(s.auth))
		}
		r.Get("/teams", s.handleTeams)
		r.Route("/teams/{team}", func(r chi.Router) {
			r.Get("/month", s.handleMonth)
			r.Get("/statistics", s.handleStatistics)
			r.Get("/next", s.handleNext)
			r.Get("/pattern.ics", s.handlePatternICS)
			r.Get("/shifts.ics", s.handleShiftsICS)
			r.Post("/import", s.handleImport)
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// teamDTO is the JSON view of a team assignment.
type teamDTO struct {
	Team        string     `json:"team"`
	CompanyID   string     `json:"company_id,omitempty"`
	ShiftTypeID string     `json:"shift_type_id"`
	AnchorDate  model.Date `json:"anchor_date"`
	Color       string     `json:"color,omitempty"`
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request) {
	teams := s.calc.Teams()
	out := make([]teamDTO, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamDTO{
			Team:        t.Team,
			CompanyID:   t.CompanyID,
			ShiftTypeID: t.ShiftTypeID,
			AnchorDate:  t.AnchorDate,
			Color:       t.Color,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// dayDTO is the JSON view of a generated day. CycleDay is 1-based.
type dayDTO struct {
	Date      model.Date `json:"date"`
	Code      string     `json:"code"`
	Start     string     `json:"start,omitempty"`
	End       string     `json:"end,omitempty"`
	CycleDay  int        `json:"cycle_day"`
	IsToday   bool       `json:"is_today"`
	IsWeekend bool       `json:"is_weekend"`
}

type monthResponse struct {
	Team  string   `json:"team"`
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Days  []dayDTO `json:"days"`
}

// handleMonth returns the generated schedule.
//
// GET /api/teams/{team}/month?year=2024&month=1
//   - year, month default to today's month in the configured timezone
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	today := s.calc.Today()
	year, month, err := parseYearMonth(r, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("month:%s:%04d-%02d:%s", team, year, month, today)
	s.serveCached(w, r, key, func() (any, error) {
		schedule, err := s.calc.Month(team, year, month)
		if err != nil {
			return nil, err
		}
		days := pattern.SortedDays(schedule)
		resp := monthResponse{Team: team, Year: year, Month: int(month), Days: make([]dayDTO, 0, len(days))}
		for _, d := range days {
			dto := dayDTO{
				Date:      d.Date,
				Code:      d.Code,
				CycleDay:  d.DisplayCycleDay(),
				IsToday:   d.IsToday,
				IsWeekend: d.IsWeekend,
			}
			if d.Window != nil {
				dto.Start = d.Window.Start.String()
				dto.End = d.Window.End.String()
			}
			resp.Days = append(resp.Days, dto)
		}
		return resp, nil
	})
}

type statisticsResponse struct {
	Team  string `json:"team"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	model.MonthStatistics
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	today := s.calc.Today()
	year, month, err := parseYearMonth(r, today)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key := fmt.Sprintf("stats:%s:%04d-%02d:%s", team, year, month, today)
	s.serveCached(w, r, key, func() (any, error) {
		stats, err := s.calc.Statistics(team, year, month)
		if err != nil {
			return nil, err
		}
		return statisticsResponse{Team: team, Year: year, Month: int(month), MonthStatistics: stats}, nil
	})
}

type nextResponse struct {
	Team      string     `json:"team"`
	Date      model.Date `json:"date"`
	Code      string     `json:"code"`
	Start     string     `json:"start"`
	End       string     `json:"end"`
	DaysUntil int        `json:"days_until"`
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	next, err := s.calc.NextShift(team, s.calc.Today(), parseIntDefault(r.URL.Query().Get("horizon"), 0))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	resp := nextResponse{
		Team:      team,
		Date:      next.Date,
		Code:      next.Shift.Code,
		DaysUntil: next.DaysUntil,
	}
	if next.Shift.Window != nil {
		resp.Start = next.Shift.Window.Start.String()
		resp.End = next.Shift.Window.End.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePatternICS exports the team's generated working days of a month.
func (s *Server) handlePatternICS(w http.ResponseWriter, r *http.Request) {
	team := chi.URLParam(r, "team")
	year, month, err := parseYearMonth(r, s.calc.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.calc.Records(team, year, month)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeICS(w, ics.ExportShiftsToICS(records, s.export))
}

// handleShiftsICS exports stored records.
//
// GET /api/teams/{team}/shifts.ics?from=2024-01-01&to=2024-01-31
//   - from, to default to the first and last day of the current month
func (s *Server) handleShiftsICS(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeError(w, http.StatusNotImplemented, "shift store not configured")
		return
	}
	team := chi.URLParam(r, "team")
	if _, err := s.calc.Team(team); err != nil {
		writeAPIError(w, err)
		return
	}

	from, to, err := parseDateRange(r, s.calc.Today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.records.ListShifts(r.Context(), team, from, to)
	if err != nil {
		appLog.Error("list shifts failed", err, "team", team)
		writeError(w, http.StatusInternalServerError, "failed to load shifts")
		return
	}
	writeICS(w, ics.ExportShiftsToICS(records, s.export))
}

type importRequest struct {
	URL string `json:"url"`
}

type importResponse struct {
	Imported int      `json:"imported_count"`
	Skipped  int      `json:"skipped_count"`
	Errored  int      `json:"errored_count"`
	Errors   []string `json:"errors,omitempty"`
}

// handleImport imports a calendar into the team. A JSON body {"url": ...}
// fetches a remote calendar; any other body is treated as ICS text.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		writeError(w, http.StatusNotImplemented, "importer not configured")
		return
	}
	team := chi.URLParam(r, "team")
	if _, err := s.calc.Team(team); err != nil {
		writeAPIError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	var res ics.ImportResult
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req importRequest
		if err := json.Unmarshal(body, &req); err != nil || req.URL == "" {
			writeError(w, http.StatusBadRequest, "body must be {\"url\": \"...\"}")
			return
		}
		res, err = s.importer.ImportFromURL(r.Context(), req.URL, team)
	} else {
		res, err = s.importer.Import(r.Context(), body, team)
	}
	if err != nil {
		writeAPIError(w, err)
		return
	}

	resp := importResponse{Imported: res.Imported, Skipped: res.Skipped, Errored: res.Errored}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// serveCached writes the JSON encoding of build's result, reusing a cached
// body when one exists. Errors are never cached.
func (s *Server) serveCached(w http.ResponseWriter, r *http.Request, key string, build func() (any, error)) {
	if s.cache != nil {
		if body, ok := s.cache.Get(r.Context(), key); ok {
			writeRawJSON(w, http.StatusOK, body)
			return
		}
	}

	v, err := build()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		appLog.Error("failed to encode JSON response", err)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	if s.cache != nil {
		s.cache.Set(r.Context(), key, body)
	}
	writeRawJSON(w, http.StatusOK, body)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pattern.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, pattern.ErrNotFound),
		errors.Is(err, pattern.ErrUnknownTeam),
		errors.Is(err, pattern.ErrUnknownShiftType):
		return http.StatusNotFound
	case errors.Is(err, ics.ErrNetworkFetch):
		return http.StatusBadGateway
	case errors.Is(err, ics.ErrICSParse):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		appLog.Error("request failed", err)
	}
	writeError(w, status, err.Error())
}

func parseYearMonth(r *http.Request, today model.Date) (int, time.Month, error) {
	q := r.URL.Query()
	year, month := today.Year, int(today.Month)
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
		month = n
	}
	return year, time.Month(month), nil
}

func parseDateRange(r *http.Request, today model.Date) (model.Date, model.Date, error) {
	q := r.URL.Query()
	from := model.NewDate(today.Year, today.Month, 1)
	to := model.NewDate(today.Year, today.Month, model.DaysInMonth(today.Year, today.Month))

	var err error
	if v := q.Get("from"); v != "" {
		if from, err = model.ParseDate(v); err != nil {
			return model.Date{}, model.Date{}, fmt.Errorf("invalid from %q", v)
		}
	}
	if v := q.Get("to"); v != "" {
		if to, err = model.ParseDate(v); err != nil {
			return model.Date{}, model.Date{}, fmt.Errorf("invalid to %q", v)
		}
	}
	if to.Before(from) {
		return model.Date{}, model.Date{}, fmt.Errorf("to %s is before from %s", to, from)
	}
	return from, to, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeICS(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
