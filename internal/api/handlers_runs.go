package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Cachearr/internal/db"
	"github.com/mescon/Cachearr/internal/logger"
	"github.com/mescon/Cachearr/internal/report"
)

// getRuns lists run summaries, newest first.
func (s *RESTServer) getRuns(c *gin.Context) {
	p := ParsePagination(c, DefaultPaginationConfig())

	total, err := s.store.CountRuns()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	runs, err := s.store.ListRuns(p.Limit, p.Offset)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       runs,
		"pagination": NewPaginationResponse(p, total),
	})
}

// getRun returns one run with its per-entry records in processing order.
func (s *RESTServer) getRun(c *gin.Context) {
	id := c.Param("id")

	run, err := s.store.GetRun(id)
	if errors.Is(err, db.ErrRunNotFound) {
		respondNotFound(c, ErrMsgRunNotFound)
		return
	}
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	records, err := s.store.GetRunRecords(id)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":     run,
		"failed":  run.Failed(),
		"records": records,
	})
}

// triggerRun starts a pipeline pass in the background.
func (s *RESTServer) triggerRun(c *gin.Context) {
	if s.scheduler == nil {
		respondServiceUnavailable(c, "Scheduler")
		return
	}
	if s.pipeline != nil && s.pipeline.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": ErrMsgRunInProgress})
		return
	}

	logger.Infof("Manual run requested (request_id=%s)", c.GetString("request_id"))
	go s.scheduler.RunNow()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// getReport returns the CSV report of the last completed run as JSON.
func (s *RESTServer) getReport(c *gin.Context) {
	rows, err := report.Read(s.cfg.ReportPath)
	if errors.Is(err, os.ErrNotExist) {
		respondNotFound(c, ErrMsgReportNotFound)
		return
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, ErrMsgInternalError, err)
		return
	}

	added := 0
	for _, r := range rows {
		if r.Added {
			added++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"path":  s.cfg.ReportPath,
		"total": len(rows),
		"added": added,
		"rows":  rows,
	})
}
