package http

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"household-ledger/internal/config"
	"household-ledger/internal/family"
	"household-ledger/internal/purchases"
	"household-ledger/internal/tags"
)

//go:embed schemas/purchase.schema.json
var purchaseSchema []byte

func init() {
	// money goes out as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type Server struct {
	cfg       *config.Config
	db        *gorm.DB
	log       *logrus.Logger
	validator *gojsonschema.Schema
	families  *family.Service
	tags      *tags.Service
	purchases *purchases.Service
}

func NewServer(cfg *config.Config, db *gorm.DB, log *logrus.Logger) *gin.Engine {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(purchaseSchema))
	if err != nil {
		panic(err)
	}
	tagSvc := tags.NewService(db)
	s := &Server{
		cfg:       cfg,
		db:        db,
		log:       log,
		validator: schema,
		families:  family.NewService(db),
		tags:      tagSvc,
		purchases: purchases.NewService(db, tagSvc),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(corsMiddleware(cfg))
	r.Use(logging(log))
	if cfg.RateLimitRPS > 0 {
		r.Use(rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	api := r.Group("/api")
	api.Use(bodyLimit(cfg.MaxBodyBytes()))
	api.Use(requestTimeout(cfg.RequestTimeout()))
	api.Use(s.AuthMiddleware())
	{
		api.GET("/me", s.me)

		api.GET("/families/mine", s.myFamily)
		api.POST("/families", s.createFamily)
		api.DELETE("/families/:id", s.cancelFamily)
		api.GET("/families/:id/members", s.listMembers)
		api.DELETE("/families/:id/members/:userId", s.removeMember)
		api.GET("/families/:id/join-requests", s.pendingJoinRequests)

		api.POST("/join-requests", s.requestJoin)
		api.GET("/join-requests/mine", s.myJoinRequests)
		api.POST("/join-requests/:id/approve", s.approveJoinRequest)
		api.POST("/join-requests/:id/reject", s.rejectJoinRequest)
		api.POST("/join-requests/:id/cancel", s.cancelJoinRequest)

		api.GET("/tags", s.listTags)
		api.POST("/tags", s.createTag)
		api.DELETE("/tags/:id", s.deleteTag)

		api.POST("/purchases", s.createPurchase)
		api.GET("/purchases", s.listPurchases)
		api.DELETE("/purchases/:id", s.deletePurchase)

		api.GET("/export.csv", s.exportCSV)
		api.GET("/export.xlsx", s.exportXLSX)
		api.GET("/insights", s.getInsights)
	}
	return r
}

// activeFamily resolves the caller's family or aborts with missing.
func (s *Server) activeFamily(c *gin.Context, missing error) (*family.Membership, bool) {
	m, err := s.families.RequireActive(c.Request.Context(), currentUserID(c), missing)
	if err != nil {
		s.fail(c, "activeFamily", err)
		return nil, false
	}
	return m, true
}

func (s *Server) createPurchase(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortJSON(c, http.StatusRequestEntityTooLarge, "payload_too_large")
			return
		}
		abortJSON(c, http.StatusBadRequest, "invalid_payload")
		return
	}
	res, err := s.validator.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_payload")
		return
	}
	if !res.Valid() {
		d := []string{}
		for _, e := range res.Errors() {
			d = append(d, e.String())
		}
		abortDetails(c, http.StatusBadRequest, "invalid_payload", d)
		return
	}

	var in purchases.Input
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "invalid_payload")
		return
	}

	id, err := s.purchases.Create(c.Request.Context(), m, in)
	if err != nil {
		s.fail(c, "createPurchase", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "purchase": gin.H{"id": id}})
}

// queryList reads a repeated query parameter sent either as key[] or key.
func queryList(c *gin.Context, key string) []string {
	if v := c.QueryArray(key + "[]"); len(v) > 0 {
		return v
	}
	return c.QueryArray(key)
}

func purchaseFilter(c *gin.Context) purchases.Filter {
	return purchases.Filter{
		View:          c.Query("view"),
		Month:         c.Query("month"),
		Users:         queryList(c, "users"),
		User:          c.DefaultQuery("user", purchases.UserMe),
		TagIDs:        queryList(c, "tags"),
		TagName:       c.Query("tag"),
		PaymentMethod: c.Query("mtp"),
	}
}

func (s *Server) listPurchases(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoActiveFamily)
	if !ok {
		return
	}
	rows, err := s.purchases.List(c.Request.Context(), m, purchaseFilter(c))
	if err != nil {
		s.fail(c, "listPurchases", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": rows})
}

func (s *Server) deletePurchase(c *gin.Context) {
	m, ok := s.activeFamily(c, family.ErrNoFamilyAccess)
	if !ok {
		return
	}
	removed, err := s.purchases.Delete(c.Request.Context(), m, strings.TrimSpace(c.Param("id")))
	if err != nil {
		s.fail(c, "deletePurchase", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "removed": removed})
}
