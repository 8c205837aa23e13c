package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"household-ledger/internal/family"
)

func (s *Server) listTags(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}
	list, err := s.tags.List(c.Request.Context(), m.FamilyID)
	if err != nil {
		s.fail(c, "listTags", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createTag(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}
	var input struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		abortJSON(c, http.StatusBadRequest, "name_required")
		return
	}
	tag, err := s.tags.Create(c.Request.Context(), m, input.Name, input.Color)
	if err != nil {
		s.fail(c, "createTag", err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

func (s *Server) deleteTag(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}
	if err := s.tags.Delete(c.Request.Context(), m, c.Param("id")); err != nil {
		s.fail(c, "deleteTag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
