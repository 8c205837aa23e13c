package http

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"household-ledger/internal/apperr"
	"household-ledger/internal/config"
)

func abortJSON(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "code": code, "request_id": c.GetString(ctxRequestID)})
}

func abortDetails(c *gin.Context, status int, code string, details []string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "code": code, "details": details, "request_id": c.GetString(ctxRequestID)})
}

// fail maps err onto its stable code. Infrastructure causes are logged and
// never echoed to the client.
func (s *Server) fail(c *gin.Context, funcName string, err error) {
	e := apperr.As(err)
	if e.Kind == apperr.KindInternal || e.Kind == apperr.KindUnavailable {
		logger := s.log.WithFields(logrus.Fields{"request_id": c.GetString(ctxRequestID), "user_id": c.GetString(ctxUserID)})
		config.LogError(logger, "http", funcName, e.Code, gin.H{"path": c.Request.URL.Path}, err)
	}
	abortJSON(c, e.Kind.Status(), e.Code)
}
