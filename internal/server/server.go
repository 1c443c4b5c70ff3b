// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the aggregator over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/scholarly/internal/aggregate"
	"github.com/pdiddy/scholarly/internal/prefs"
	"github.com/pdiddy/scholarly/internal/source"
	"github.com/pdiddy/scholarly/pkg/types"
)

// Server wires the aggregator and preferences store to HTTP routes.
type Server struct {
	agg   *aggregate.Aggregator
	prefs *prefs.Store
	reg   *prometheus.Registry
	log   zerolog.Logger
}

// New builds a server. reg may be nil to disable the /metrics route.
func New(agg *aggregate.Aggregator, store *prefs.Store, reg *prometheus.Registry, log zerolog.Logger) *Server {
	return &Server{agg: agg, prefs: store, reg: reg, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	}

	r.POST("/search", s.search)
	r.GET("/papers/:source/:id", s.getPaper)
	r.GET("/papers/:source/:id/related", s.related)
	r.GET("/papers/:source/:id/fulltext", s.fullText)
	r.GET("/papers/:source/:id/citation", s.citation)
	r.GET("/methods", s.methods)

	r.GET("/preferences", s.getPreferences)
	r.PUT("/preferences/sources/:name", s.putSourcePreference)
	r.PUT("/preferences/search", s.putSearchPreferences)
	r.PUT("/preferences/display", s.putDisplayPreferences)
	r.POST("/preferences/reset", s.resetPreferences)
	r.GET("/preferences/export", s.exportPreferences)
	r.POST("/preferences/import", s.importPreferences)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLog assigns a request ID and logs method, path, status and
// latency for every request.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header("X-Request-ID", id)
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("request_id", id).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) search(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	res, err := s.agg.Search(c.Request.Context(), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getPaper(c *gin.Context) {
	src := types.Source(c.Param("source"))
	paper, err := s.agg.GetPaper(c.Request.Context(), src, c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, paper)
}

func (s *Server) related(c *gin.Context) {
	if types.Source(c.Param("source")) != types.SourcePubMed {
		c.JSON(http.StatusNotFound, gin.H{"error": "related papers are only available for pubmed"})
		return
	}
	papers, err := s.agg.Related(c.Request.Context(), c.Param("id"), queryInt(c, "max"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"papers": papers})
}

func (s *Server) fullText(c *gin.Context) {
	if types.Source(c.Param("source")) != types.SourcePubMed {
		c.JSON(http.StatusNotFound, gin.H{"error": "full text is only available for pubmed"})
		return
	}
	ft, err := s.agg.FullText(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if term := c.Query("q"); term != "" {
		c.JSON(http.StatusOK, gin.H{"pmid": ft.PMID, "pmcid": ft.PMCID, "matches": aggregate.SearchWithin(ft, term)})
		return
	}
	c.JSON(http.StatusOK, ft)
}

func (s *Server) citation(c *gin.Context) {
	style := aggregate.CitationStyle(c.DefaultQuery("style", string(aggregate.StyleBibTeX)))
	paper, err := s.agg.GetPaper(c.Request.Context(), types.Source(c.Param("source")), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	text, err := aggregate.FormatCitation(paper, style)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"style": style, "citation": text})
}

func (s *Server) methods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": s.agg.Methods()})
}

func (s *Server) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, s.prefs.Get())
}

func (s *Server) putSourcePreference(c *gin.Context) {
	var patch prefs.SourcePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.prefs.SetSourcePreference(types.Source(c.Param("name")), patch); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.prefs.Get())
}

func (s *Server) putSearchPreferences(c *gin.Context) {
	var patch prefs.SearchPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.prefs.UpdateSearchPreferences(patch); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.prefs.Get())
}

func (s *Server) putDisplayPreferences(c *gin.Context) {
	var patch prefs.DisplayPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := s.prefs.UpdateDisplayPreferences(patch); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.prefs.Get())
}

func (s *Server) resetPreferences(c *gin.Context) {
	if err := s.prefs.ResetToDefaults(); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.prefs.Get())
}

func (s *Server) exportPreferences(c *gin.Context) {
	data, err := s.prefs.Export()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importPreferences(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading request body: " + err.Error()})
		return
	}
	if err := s.prefs.Import(data); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.prefs.Get())
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *aggregate.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, prefs.ErrInvalidFormat), errors.Is(err, prefs.ErrUnknownSource):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, source.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, source.ErrParse):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// queryInt parses an integer query parameter. Malformed values fall
// through to zero, which means "use the preferences default".
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
