package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/smart-classroom-api/pkg/errors"
	"github.com/noah-isme/smart-classroom-api/pkg/response"
)

// UUIDParams rejects requests whose named path parameters are not UUIDs. No
// record can carry such an id, so the request is answered with 404.
func UUIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value, ok := c.Params.Get(name)
			if !ok {
				continue
			}
			if _, err := uuid.Parse(value); err != nil {
				response.Abort(c, appErrors.ErrNotFound)
				return
			}
		}
		c.Next()
	}
}

// UUIDQuery rejects requests whose named query filters are set but are not UUIDs.
func UUIDQuery(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value := strings.TrimSpace(c.Query(name))
			if value == "" {
				continue
			}
			if _, err := uuid.Parse(value); err != nil {
				response.Abort(c, appErrors.Clone(appErrors.ErrValidation, name+" must be a UUID"))
				return
			}
		}
		c.Next()
	}
}
