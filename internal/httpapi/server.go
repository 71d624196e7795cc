package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"enam/internal/controller"
	"enam/internal/pages"
	"enam/internal/paginate"
	"enam/internal/portfolio"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
)

// DashboardServer serves the dashboard HTTP API.
type DashboardServer struct {
	catalogue *pages.Catalogue
	src       source.Source
	folio     portfolio.Service
	log       *slog.Logger
	now       func() time.Time

	// loads collapses concurrent loads of the same page.
	loads singleflight.Group

	mu        sync.Mutex
	ctrls     map[string]*controller.Controller
	loadedAt  map[string]time.Time
	companies []portfolio.Company
}

// NewDashboardServer creates a new dashboard HTTP server. folio may be nil,
// in which case portfolio routes answer 503 and portfolio-scoped pages fail
// to load.
func NewDashboardServer(
	catalogue *pages.Catalogue,
	src source.Source,
	folio portfolio.Service,
	log *slog.Logger,
) *DashboardServer {
	if log == nil {
		log = slog.Default()
	}
	return &DashboardServer{
		catalogue: catalogue,
		src:       src,
		folio:     folio,
		log:       log,
		now:       time.Now,
		ctrls:     make(map[string]*controller.Controller),
		loadedAt:  make(map[string]time.Time),
	}
}

// SetClock overrides time.Now, for tests.
func (s *DashboardServer) SetClock(now func() time.Time) { s.now = now }

// LoadCompanies reads the searchable company list from loc.
func (s *DashboardServer) LoadCompanies(ctx context.Context, loc source.Locator, symbolField, nameField string) error {
	recs, err := s.src.Fetch(ctx, loc)
	if err != nil {
		return fmt.Errorf("loading companies: %w", err)
	}
	companies := portfolio.CompaniesFrom(recs, symbolField, nameField)
	s.mu.Lock()
	s.companies = companies
	s.mu.Unlock()
	s.log.Info("companies loaded", "count", len(companies))
	return nil
}

// RegisterRoutes registers all API routes on the given mux.
func (s *DashboardServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/pages", s.handlePages)
	mux.HandleFunc("GET /api/pages/{page}", s.handlePage)
	mux.HandleFunc("POST /api/pages/{page}/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/last-updated", s.handleLastUpdated)
	mux.HandleFunc("GET /pages/{page}", s.handlePageHTML)
	mux.HandleFunc("GET /api/portfolio", s.handleGetPortfolio)
	mux.HandleFunc("POST /api/portfolio", s.handleAddPortfolio)
	mux.HandleFunc("DELETE /api/portfolio", s.handleRemovePortfolio)
	mux.HandleFunc("POST /api/portfolio/apply", s.handleApplyPortfolio)
	mux.HandleFunc("GET /api/portfolio/search", s.handleSearch)
}

// Handler returns an http.Handler with CORS middleware.
func (s *DashboardServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// controller returns the page's controller, loading it on first use. A
// failed load is retried on the next request.
func (s *DashboardServer) controller(ctx context.Context, name string) (*pages.Page, *controller.Controller, error) {
	p, c, err := s.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	if c.Loaded() {
		return p, c, nil
	}
	return p, c, s.load(ctx, name, c)
}

func (s *DashboardServer) lookup(name string) (*pages.Page, *controller.Controller, error) {
	p, ok := s.catalogue.Lookup(name)
	if !ok {
		return nil, nil, errUnknownPage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrls[name]
	if !ok {
		c = controller.New(&p.Pipeline, s.src, s.folio, nil, s.log)
		c.SetClock(s.now)
		s.ctrls[name] = c
	}
	return p, c, nil
}

var errUnknownPage = errors.New("unknown page")

func (s *DashboardServer) load(ctx context.Context, name string, c *controller.Controller) error {
	// Every collapsed caller waits on this load, so it must outlive the
	// request that started it.
	ctx = context.WithoutCancel(ctx)
	_, err, _ := s.loads.Do(name, func() (any, error) {
		start := time.Now()
		if err := c.Load(ctx); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loadedAt[name] = s.now()
		s.mu.Unlock()
		s.log.Info("page refreshed", "page", name, "records", len(c.Dataset().All), "elapsed", time.Since(start))
		return nil, nil
	})
	return err
}

// loadStatus maps a load error to an HTTP status.
func loadStatus(err error) int {
	switch {
	case errors.Is(err, errUnknownPage):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrStaleLoad):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

type view struct {
	page *pages.Page
	ctrl *controller.Controller
	res  controller.Result
	q    pages.Query
}

func (s *DashboardServer) compute(r *http.Request) (*view, int, error) {
	name := r.PathValue("page")
	p, c, err := s.controller(r.Context(), name)
	if err != nil {
		return nil, loadStatus(err), err
	}
	q, err := p.ParseQuery(r.URL.Query())
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	res := p.Compute(c.Dataset().All, q.Filters, render.Sort{}, q.Page, q.Size, s.now())
	return &view{page: p, ctrl: c, res: res, q: q}, http.StatusOK, nil
}

func (s *DashboardServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *DashboardServer) handlePages(w http.ResponseWriter, _ *http.Request) {
	resp := PagesResponse{}
	for _, p := range s.catalogue.Pages() {
		resp.Pages = append(resp.Pages, convertPage(p))
	}
	writeJSON(w, resp)
}

func (s *DashboardServer) handlePage(w http.ResponseWriter, r *http.Request) {
	v, status, err := s.compute(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	cols := v.ctrl.Columns()
	visible := v.res.Visible
	if visible == nil {
		visible = []record.Record{}
	}

	resp := PageResponse{
		Page:        v.page.Name,
		Title:       v.page.Title,
		Columns:     convertColumns(cols),
		Records:     visible,
		Matched:     len(v.res.Filtered),
		Total:       len(v.ctrl.Dataset().All),
		CurrentPage: v.res.Page,
		PageSize:    v.res.PageSize,
		TotalPages:  v.res.TotalPages,
		Options:     map[string][]string{},
	}
	if v.res.PageSize > 0 {
		resp.Buttons = convertButtons(paginate.Strip(v.res.TotalPages, v.res.Page))
	}
	for _, d := range v.page.Dimensions {
		if opts := v.ctrl.Options(d.Field); opts != nil {
			resp.Options[d.Param] = opts
		}
	}
	s.mu.Lock()
	resp.LoadedAt = s.loadedAt[v.page.Name]
	s.mu.Unlock()
	writeJSON(w, resp)
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body><h1>{{.Title}}</h1>
{{.Body}}
</body></html>`))

type htmlRenderer interface {
	render.Surface
	render.ErrorShower
	HTML() template.HTML
}

type pager interface {
	SetPage(current, total int)
}

func (s *DashboardServer) handlePageHTML(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("page")
	p, ok := s.catalogue.Lookup(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	surf, ok := p.HTML(s.now).(htmlRenderer)
	if !ok {
		http.Error(w, "page has no HTML view", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	v, st, err := s.compute(r)
	if err != nil {
		status = st
		surf.ShowError(err)
	} else {
		if pg, ok := surf.(pager); ok && v.res.PageSize > 0 {
			pg.SetPage(v.res.Page, v.res.TotalPages)
		}
		if err := surf.Render(v.res.Visible, v.ctrl.Columns()); err != nil {
			status = http.StatusInternalServerError
			surf.ShowError(err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, map[string]any{"Title": p.Title, "Body": surf.HTML()}); err != nil {
		s.log.Error("writing page", "page", name, "error", err)
	}
}

func (s *DashboardServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("page")
	_, c, err := s.lookup(name)
	if err == nil {
		err = s.load(r.Context(), name, c)
	}
	if err != nil {
		s.log.Warn("refresh failed", "page", name, "error", err)
		writeError(w, loadStatus(err), err.Error())
		return
	}
	s.mu.Lock()
	at := s.loadedAt[name]
	s.mu.Unlock()
	writeJSON(w, RefreshResponse{Page: name, Records: len(c.Dataset().All), LoadedAt: at})
}

func (s *DashboardServer) handleLastUpdated(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := LastUpdatedResponse{Pages: make(map[string]time.Time, len(s.loadedAt))}
	for k, v := range s.loadedAt {
		resp.Pages[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, resp)
}

// ---------------------------------------------------------------------------
// Portfolio
// ---------------------------------------------------------------------------

func (s *DashboardServer) requirePortfolio(w http.ResponseWriter) bool {
	if s.folio == nil {
		writeError(w, http.StatusServiceUnavailable, "portfolio not configured")
		return false
	}
	return true
}

func (s *DashboardServer) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	if !s.requirePortfolio(w) {
		return
	}
	items, err := s.folio.List(r.Context())
	if err != nil {
		s.log.Warn("listing portfolio", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	writeJSON(w, items)
}

func (s *DashboardServer) handleAddPortfolio(w http.ResponseWriter, r *http.Request) {
	if !s.requirePortfolio(w) {
		return
	}
	var req portfolio.Item
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing data")
		return
	}
	if err := s.folio.Add(r.Context(), req.Symbol, req.Name); err != nil {
		s.portfolioError(w, "adding to portfolio", err)
		return
	}
	writeJSON(w, MessageResponse{Message: "Added"})
}

func (s *DashboardServer) handleRemovePortfolio(w http.ResponseWriter, r *http.Request) {
	if !s.requirePortfolio(w) {
		return
	}
	var req portfolio.Item
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "Missing symbol")
		return
	}
	if err := s.folio.Remove(r.Context(), req.Symbol); err != nil {
		s.portfolioError(w, "removing from portfolio", err)
		return
	}
	writeJSON(w, MessageResponse{Message: "Deleted"})
}

// handleApplyPortfolio applies pending changes and reloads every
// portfolio-scoped page that has been loaded.
func (s *DashboardServer) handleApplyPortfolio(w http.ResponseWriter, r *http.Request) {
	if !s.requirePortfolio(w) {
		return
	}
	if err := s.folio.Apply(r.Context()); err != nil {
		s.portfolioError(w, "applying portfolio", err)
		return
	}
	s.mu.Lock()
	var scoped []string
	for name, c := range s.ctrls {
		if c.Pipeline().Scope != nil {
			scoped = append(scoped, name)
		}
	}
	s.mu.Unlock()
	sort.Strings(scoped)
	for _, name := range scoped {
		s.mu.Lock()
		c := s.ctrls[name]
		s.mu.Unlock()
		if err := s.load(r.Context(), name, c); err != nil {
			s.log.Warn("reloading after apply", "page", name, "error", err)
		}
	}
	writeJSON(w, MessageResponse{Message: "Applied"})
}

func (s *DashboardServer) portfolioError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, portfolio.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, portfolio.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Warn(op, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *DashboardServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	s.mu.Lock()
	companies := s.companies
	s.mu.Unlock()
	results := portfolio.RankMatches(companies, q)
	if results == nil {
		results = []portfolio.Company{}
	}
	if len(results) > 20 {
		results = results[:20]
	}
	writeJSON(w, SearchResponse{Query: q, Results: results})
}
