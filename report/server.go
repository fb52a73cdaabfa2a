// Copyright 2026 The rupsco Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/afonsecab/rupsco/registry"
	"github.com/gin-gonic/gin"
)

// Server is a local-only preview of the coverage KPIs and the heatmap.
// It is a browsing aid for analysts, not an operational service, and binds
// to localhost only.
type Server struct {
	db          *sql.DB
	repo        registry.ProviderRepository
	heatmapPath string
}

// NewServer creates a preview server. heatmapPath is the rendered heatmap
// HTML artifact, served as the landing page when present.
func NewServer(db *sql.DB, repo registry.ProviderRepository, heatmapPath string) *Server {
	return &Server{db: db, repo: repo, heatmapPath: heatmapPath}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/", s.heatmapView)
	r.GET("/api/summary", s.getSummary)
	r.GET("/api/points", s.getPoints)
	r.GET("/api/departamentos", s.getDepartmentCounts)
	r.GET("/api/clasificacion", s.getClassificationCounts)

	return r
}

// Run serves on localhost:8080 until interrupted.
func (s *Server) Run() error {
	return s.Router().Run("localhost:8080")
}

func (s *Server) heatmapView(ctx *gin.Context) {
	if _, err := os.Stat(s.heatmapPath); err != nil {
		ctx.String(http.StatusNotFound, "heatmap not rendered yet - run 'rupsco geocode' first")

		return
	}

	ctx.File(s.heatmapPath)
}

func (s *Server) getSummary(ctx *gin.Context) {
	summary, err := BuildSummary(s.db)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, summary)
}

func (s *Server) getPoints(ctx *gin.Context) {
	onlyOperational := ctx.Query("only_operational") != "false"

	points, err := s.repo.HeatPoints(onlyOperational)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"points": points, "count": len(points)})
}

func (s *Server) getDepartmentCounts(ctx *gin.Context) {
	excludeBogota := ctx.Query("exclude_bogota") != "false"

	counts, err := DepartmentCounts(s.db, excludeBogota)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, counts)
}

func (s *Server) getClassificationCounts(ctx *gin.Context) {
	counts, err := ClassificationCounts(s.db)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, counts)
}
