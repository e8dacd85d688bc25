package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/david/b2-radar/internal/analytics"
	"github.com/david/b2-radar/internal/format"
	"github.com/david/b2-radar/internal/ingest"
	"github.com/david/b2-radar/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// loadTimeout bounds a pipeline run triggered by a request. The run is detached from the
// request context because concurrent callers share it.
const loadTimeout = 2 * time.Minute

// RunLister reads pipeline run history.
type RunLister interface {
	ListRuns(ctx context.Context, sourceID string, limit int) ([]models.PipelineRun, error)
}

// Config wires the server's collaborators.
type Config struct {
	Registry    *ingest.Registry
	Factory     *ingest.ReaderFactory
	Cache       *ingest.Cache
	Recorder    ingest.RunRecorder
	Runs        RunLister
	AdminSecret string
	CORSOrigins []string
}

type Server struct {
	Echo     *echo.Echo
	Registry *ingest.Registry
	Factory  *ingest.ReaderFactory
	Cache    *ingest.Cache
	Recorder ingest.RunRecorder
	Runs     RunLister

	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
}

func NewServer(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from config or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	allowedOrigins = append(allowedOrigins, cfg.CORSOrigins...)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	if cfg.Factory == nil {
		cfg.Factory = ingest.DefaultReaderFactory
	}
	if cfg.Cache == nil {
		cfg.Cache = ingest.NewCache(ingest.DefaultCacheTTL, nil)
	}
	if cfg.Registry == nil {
		cfg.Registry = &ingest.Registry{}
	}

	s := &Server{
		Echo:               e,
		Registry:           cfg.Registry,
		Factory:            cfg.Factory,
		Cache:              cfg.Cache,
		Recorder:           cfg.Recorder,
		Runs:               cfg.Runs,
		adminSecretRuntime: strings.TrimSpace(cfg.AdminSecret),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/sources", s.handleListSources)
	api.GET("/sources/:id/opportunities", s.handleOpportunities)
	api.GET("/sources/:id/opportunities/:oc", s.handleOpportunityReport)
	api.GET("/sources/:id/identifiers", s.handleIdentifiers)
	api.GET("/sources/:id/timeline", s.handleTimeline)
	api.GET("/sources/:id/kpis", s.handleKPIs)
	api.GET("/sources/:id/aggregations", s.handleAggregations)
	api.GET("/runs", s.handleListRuns)
	api.POST("/sources/:id/refresh", s.handleRefresh, s.adminMiddleware)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// Shutdown stops the HTTP server and the source fetchers.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	s.Factory.Close()
	return err
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// datasetMeta is embedded in every dataset response.
type datasetMeta struct {
	Source      string    `json:"source"`
	GeneratedAt time.Time `json:"generated_at"`
	Warning     string    `json:"warning,omitempty"`
}

// loadDataset serves the source's dataset through the cache. Ingestion failures become
// an empty dataset plus a warning rather than an HTTP error.
func (s *Server) loadDataset(c echo.Context) (*models.Dataset, datasetMeta, error) {
	id := c.Param("id")
	src, err := s.Registry.Get(id)
	if err != nil {
		return nil, datasetMeta{}, echo.NewHTTPError(http.StatusNotFound, "Source not found")
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), loadTimeout)
	defer cancel()

	ds, err := s.Cache.Load(ctx, src.ID, s.loader(src))
	meta := datasetMeta{Source: src.ID}
	if err != nil {
		log.Printf("[API] Dataset for %s unavailable: %v", src.ID, err)
		meta.Warning = "Dados indisponíveis. Verifique a conexão com a planilha."
	}
	if ds == nil {
		ds = &models.Dataset{Source: src.ID, Opportunities: []models.Opportunity{}, Timeline: []models.TimelineRecord{}}
	}
	meta.GeneratedAt = ds.GeneratedAt
	return ds, meta, nil
}

func (s *Server) loader(src ingest.SourceConfig) ingest.Loader {
	return func(ctx context.Context) (*models.Dataset, error) {
		p, err := ingest.NewPipeline(src, s.Factory, s.Recorder)
		if err != nil {
			return nil, err
		}
		return p.Run(ctx)
	}
}

type sourceInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	Description string     `json:"description,omitempty"`
	Cached      bool       `json:"cached"`
	Stale       bool       `json:"stale"`
	FetchedAt   *time.Time `json:"fetched_at,omitempty"`
}

func (s *Server) handleListSources(c echo.Context) error {
	now := time.Now()
	out := make([]sourceInfo, 0, len(s.Registry.Sources))
	for _, src := range s.Registry.Sources {
		info := sourceInfo{
			ID:          src.ID,
			Name:        src.Name,
			Kind:        src.Kind,
			Description: src.Description,
			Stale:       s.Cache.IsStale(src.ID, now),
		}
		if _, fetchedAt, ok := s.Cache.Get(src.ID); ok {
			info.Cached = true
			info.FetchedAt = &fetchedAt
		}
		out = append(out, info)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleOpportunities(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	opps := filter.Apply(ds.Opportunities)
	return c.JSON(http.StatusOK, map[string]any{
		"meta":          meta,
		"stats":         ds.Stats,
		"count":         len(opps),
		"opportunities": opps,
	})
}

func (s *Server) handleTimeline(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	timeline := ds.Timeline
	if !filter.IsZero() {
		timeline = analytics.RestrictTimeline(ds.Timeline, filter.Apply(ds.Opportunities))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"meta":     meta,
		"count":    len(timeline),
		"timeline": timeline,
	})
}

type kpiDisplay struct {
	TotalOpportunities string `json:"total_opportunities"`
	WinRate            string `json:"win_rate"`
	WonValue           string `json:"won_value"`
	AverageTicket      string `json:"average_ticket"`
	PipelineValue      string `json:"pipeline_value"`
	ForecastValue      string `json:"forecast_value"`
}

func (s *Server) handleKPIs(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	k := analytics.ComputeKPIs(filter.Apply(ds.Opportunities))
	return c.JSON(http.StatusOK, map[string]any{
		"meta": meta,
		"kpis": k,
		"display": kpiDisplay{
			TotalOpportunities: format.Int(k.TotalOpportunities),
			WinRate:            format.Percent(&k.WinRate),
			WonValue:           format.BRL(k.WonValue),
			AverageTicket:      format.BRL(k.AverageTicket),
			PipelineValue:      format.BRL(k.PipelineValue),
			ForecastValue:      format.BRL(k.ForecastValue),
		},
	})
}

func (s *Server) handleAggregations(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	opps := filter.Apply(ds.Opportunities)
	timeline := analytics.RestrictTimeline(ds.Timeline, opps)
	return c.JSON(http.StatusOK, map[string]any{
		"meta":         meta,
		"aggregations": analytics.Aggregate(opps, timeline),
	})
}

// handleIdentifiers lists the identifiers of the filtered table, for the report picker.
func (s *Server) handleIdentifiers(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	ids := analytics.Identifiers(filter.Apply(ds.Opportunities))
	return c.JSON(http.StatusOK, map[string]any{
		"meta":        meta,
		"count":       len(ids),
		"identifiers": ids,
	})
}

func (s *Server) handleOpportunityReport(c echo.Context) error {
	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	oc := strings.ToUpper(strings.TrimSpace(c.Param("oc")))
	report, ok := analytics.BuildReport(ds.Opportunities, ds.Timeline, oc)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]any{"meta": meta, "error": "Opportunity not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"meta":   meta,
		"report": report,
		"display": map[string]string{
			"value":           format.BRL(report.Opportunity.Value),
			"close_value":     format.BRL(report.Opportunity.CloseValue),
			"close_value_rec": format.BRL(report.Opportunity.CloseValueRec),
			"total_duration":  ingest.FormatDuration(report.TotalHours),
		},
	})
}

func (s *Server) handleRefresh(c echo.Context) error {
	src, err := s.Registry.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Source not found"})
	}
	s.Cache.Invalidate(src.ID)

	ds, meta, err := s.loadDataset(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"meta":  meta,
		"stats": ds.Stats,
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.Runs == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Run history is not configured"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := s.Runs.ListRuns(c.Request().Context(), c.QueryParam("source"), limit)
	if err != nil {
		c.Logger().Errorf("Failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, runs)
}

// parseFilter reads from/to (YYYY-MM-DD), stage/owner/state (comma-separated) and oc.
func parseFilter(c echo.Context) (analytics.Filter, error) {
	var f analytics.Filter
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(c.QueryParam(p.name))
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s date %q, expected YYYY-MM-DD", p.name, v))
		}
		*p.dst = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, echo.NewHTTPError(http.StatusBadRequest, "to must not be before from")
	}
	f.Stages = splitCSV(c.QueryParam("stage"))
	f.Owners = splitCSV(c.QueryParam("owner"))
	f.States = splitCSV(c.QueryParam("state"))
	f.Identifier = strings.ToUpper(strings.TrimSpace(c.QueryParam("oc")))
	return f, nil
}

// splitCSV splits a comma-separated query parameter into trimmed non-empty strings.
func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := s.adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

// adminSecret returns the configured secret, falling back to ADMIN_SECRET and finally
// to a random secret generated once per process.
func (s *Server) adminSecret() (string, error) {
	s.adminSecretOnce.Do(func() {
		if s.adminSecretRuntime != "" {
			return
		}
		if secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET")); secret != "" {
			s.adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			s.adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		s.adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if s.adminSecretErr != nil {
		return "", s.adminSecretErr
	}
	if s.adminSecretRuntime == "" {
		return "", errors.New("admin secret unavailable")
	}

	return s.adminSecretRuntime, nil
}
