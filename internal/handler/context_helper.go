package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smart-classroom-api/internal/middleware"
	"github.com/noah-isme/smart-classroom-api/internal/models"
	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

// currentActor returns the authenticated caller or writes a 401.
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// paging reads page and page_size, falling back to defaults for missing or
// non-positive values and capping page_size at maxPageSize.
func paging(c *gin.Context) (int, int) {
	page, size := 1, defaultPageSize
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		size = v
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// timeQuery accepts either a date (2006-01-02) or an RFC3339 timestamp.
func timeQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must be YYYY-MM-DD or RFC3339")
	}
	return &t, nil
}

func timeRange(c *gin.Context) (*time.Time, *time.Time, bool) {
	from, err := timeQuery(c, "from")
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	to, err := timeQuery(c, "to")
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	return from, to, true
}
