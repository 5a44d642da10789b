package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/keycase/pkg/remote"
)

func (s *Server) completeInvocation(c *gin.Context) {
	if s.completer == nil {
		writeError(c, http.StatusNotImplemented, ErrNoCompleter)
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("%w: %v", ErrInvalidJSON, err))
		return
	}

	err := s.completer.Complete(c.Param("id"), req.Outputs, req.Error)
	if errors.Is(err, remote.ErrUnknownInvocation) {
		writeError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}
