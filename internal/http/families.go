package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) myFamily(c *gin.Context) {
	m, err := s.families.ResolveActive(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, "myFamily", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) createFamily(c *gin.Context) {
	var input struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_data")
		return
	}
	fam, err := s.families.Create(c.Request.Context(), currentUserID(c), input.Name, input.Slug)
	if err != nil {
		s.fail(c, "createFamily", err)
		return
	}
	c.JSON(http.StatusCreated, fam)
}

func (s *Server) cancelFamily(c *gin.Context) {
	if err := s.families.Cancel(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.fail(c, "cancelFamily", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) listMembers(c *gin.Context) {
	activeOnly := c.Query("active_only") == "1" || c.Query("active_only") == "true"
	members, err := s.families.Members(c.Request.Context(), currentUserID(c), c.Param("id"), activeOnly)
	if err != nil {
		s.fail(c, "listMembers", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) removeMember(c *gin.Context) {
	err := s.families.RemoveMember(c.Request.Context(), currentUserID(c), c.Param("id"), c.Param("userId"))
	if err != nil {
		s.fail(c, "removeMember", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) pendingJoinRequests(c *gin.Context) {
	reqs, err := s.families.PendingJoinRequests(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		s.fail(c, "pendingJoinRequests", err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) requestJoin(c *gin.Context) {
	var input struct {
		FamilyID   string `json:"family_id"`
		FamilySlug string `json:"family_slug"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_data")
		return
	}
	if err := s.families.RequestJoin(c.Request.Context(), currentUserID(c), input.FamilyID, input.FamilySlug); err != nil {
		s.fail(c, "requestJoin", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func (s *Server) myJoinRequests(c *gin.Context) {
	reqs, err := s.families.MyJoinRequests(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, "myJoinRequests", err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (s *Server) decideJoinRequest(c *gin.Context, approve bool) {
	if err := s.families.DecideJoinRequest(c.Request.Context(), currentUserID(c), c.Param("id"), approve); err != nil {
		s.fail(c, "decideJoinRequest", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) approveJoinRequest(c *gin.Context) { s.decideJoinRequest(c, true) }

func (s *Server) rejectJoinRequest(c *gin.Context) { s.decideJoinRequest(c, false) }

func (s *Server) cancelJoinRequest(c *gin.Context) {
	if err := s.families.CancelJoinRequest(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		s.fail(c, "cancelJoinRequest", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
