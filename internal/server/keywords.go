package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petrijr/keycase/pkg/keyword"
)

func (s *Server) listKeywords(c *gin.Context) {
	schemas := s.registry.DescribeAll()
	c.JSON(http.StatusOK, KeywordsResponse{
		Keywords: schemas,
		Count:    len(schemas),
	})
}

func (s *Server) getKeyword(c *gin.Context) {
	name := c.Param("name")
	schema, err := s.registry.Describe(name)
	if errors.Is(err, keyword.ErrUnknownKeyword) {
		writeError(c, http.StatusNotFound, fmt.Errorf("%w: %s", ErrKeywordNotFound, name))
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, schema)
}
