package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/keycase/pkg/api"
	"github.com/petrijr/keycase/pkg/log"
)

func (s *Server) bindExecuteRequest(c *gin.Context) (*ExecuteRequest, bool) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		return nil, false
	}
	if req.Plan == nil {
		writeError(c, http.StatusBadRequest, ErrMissingPlan)
		return nil, false
	}
	return &req, true
}

// executeRun runs the plan synchronously. Step and validation failures are
// part of the result document; only contract violations and storage
// failures turn into error responses.
func (s *Server) executeRun(c *gin.Context) {
	req, ok := s.bindExecuteRequest(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	res, err := s.engine.Execute(ctx, req.Plan, req.ProjectID, req.RunID)
	if res == nil {
		status := http.StatusInternalServerError
		if errors.Is(err, api.ErrNilPlan) || errors.Is(err, api.ErrRegistryNotLoaded) {
			status = http.StatusUnprocessableEntity
		}
		writeError(c, status, err)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "run finished with error", log.RunID(res.RunID), log.Error(err))
	}
	c.JSON(http.StatusOK, api.ResultDocument{Result: res})
}

func (s *Server) enqueueRun(c *gin.Context) {
	if s.worker == nil {
		writeError(c, http.StatusServiceUnavailable, ErrNoWorker)
		return
	}
	req, ok := s.bindExecuteRequest(c)
	if !ok {
		return
	}

	runID, err := s.worker.EnqueueExecute(c.Request.Context(), req.ProjectID, req.Plan, req.RunID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusAccepted, RunAcceptedResponse{RunID: runID})
}

func (s *Server) listRuns(c *gin.Context) {
	runs, err := s.engine.ListRuns(c.Request.Context(), api.RunListOptions{
		ProjectID: c.Query("projectId"),
		Status:    api.RunStatus(c.Query("status")),
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*api.RunRecord{}
	}
	c.JSON(http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

func (s *Server) getRun(c *gin.Context) {
	rec, err := s.engine.GetRun(c.Request.Context(), api.ID(c.Param("runID")))
	if errors.Is(err, api.ErrRunNotFound) {
		writeError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listRunEvents(c *gin.Context) {
	runID := api.ID(c.Param("runID"))
	events, err := s.engine.ListEvents(c.Request.Context(), runID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []api.RunEvent{}
	}
	c.JSON(http.StatusOK, EventsResponse{RunID: runID, Events: events, Count: len(events)})
}

// cancelRun stops a run that is executing on this agent's worker.
func (s *Server) cancelRun(c *gin.Context) {
	if s.worker == nil {
		writeError(c, http.StatusServiceUnavailable, ErrNoWorker)
		return
	}
	runID := api.ID(c.Param("runID"))
	if !s.worker.Cancel(runID) {
		writeError(c, http.StatusNotFound, fmt.Errorf("%w: %s", ErrRunNotActive, runID))
		return
	}
	c.Status(http.StatusNoContent)
}
