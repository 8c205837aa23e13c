package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm/clause"

	"household-ledger/internal/apperr"
	"household-ledger/internal/models"
)

const tokenCookie = "token"

// Claims is the identity issued by the external auth service.
type Claims struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	jwt.RegisteredClaims
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	token, _ := c.Cookie(tokenCookie)
	return token
}

// AuthMiddleware verifies the HS256 identity token from the Authorization
// header or the token cookie and mirrors the user row from its claims.
func (s *Server) AuthMiddleware() gin.HandlerFunc {
	secret := []byte(s.cfg.JWTSecret)
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthenticated")
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || strings.TrimSpace(claims.ID) == "" {
			abortJSON(c, http.StatusUnauthorized, "invalid_session")
			return
		}

		user := models.User{ID: claims.ID, Username: claims.Username, DisplayName: claims.DisplayName}
		err = s.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "updated_at"}),
		}).Create(&user).Error
		if err != nil {
			s.fail(c, "AuthMiddleware", apperr.Internal("user_sync_failed", err))
			return
		}

		c.Set(ctxUser, &user)
		c.Set(ctxUserID, user.ID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func (s *Server) me(c *gin.Context) {
	val, _ := c.Get(ctxUser)
	user, _ := val.(*models.User)
	access, err := s.families.AccessState(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.fail(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "access": access})
}
