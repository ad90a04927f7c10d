package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crowdsale/internal/feed"
	"crowdsale/internal/tokenomics"
)

// Handler exposes the tokenomics engine over HTTP
type Handler struct {
	engine *tokenomics.Engine
	feed   *feed.Hub
	now    func() time.Time
}

// NewHandler creates a handler. hub may be nil when the live feed is disabled.
func NewHandler(engine *tokenomics.Engine, hub *feed.Hub) *Handler {
	return &Handler{
		engine: engine,
		feed:   hub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock used for commands
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// asOf returns the as_of query parameter, or now. Only read endpoints accept it.
func (h *Handler) asOf(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return h.now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be an RFC3339 timestamp", "code": "INVALID_AS_OF"})
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}

func parseDecimal(c *gin.Context, field, raw string) (decimal.Decimal, bool) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " must be a decimal number", "code": tokenomics.ErrInvalidAmount.Code})
		return decimal.Zero, false
	}
	return value, true
}

func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

// statusOf maps an error kind to its HTTP status
func statusOf(kind tokenomics.ErrorKind) int {
	switch kind {
	case tokenomics.KindValidation:
		return http.StatusBadRequest
	case tokenomics.KindStateConflict:
		return http.StatusConflict
	case tokenomics.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError 统一错误响应, 业务错误带 code, 基础设施错误只记日志
func respondError(c *gin.Context, err error) {
	var coreErr *tokenomics.Error
	if !errors.As(err, &coreErr) {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": coreErr.Error(), "code": coreErr.Code}
	if coreErr.Requested != nil {
		body["requested"] = coreErr.Requested.String()
	}
	if coreErr.Limit != nil {
		body["limit"] = coreErr.Limit.String()
	}
	c.JSON(statusOf(coreErr.Kind), body)
}
