package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContextMiddleware attaches the caller's business id and a
// correlation id to the request context. Every downstream query is
// tenant-scoped on the business id, so requests without one are rejected
// before they reach a handler.
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId := c.Request.Header.Get("x-business-id")
		if businessId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "x-business-id header is required"})
			c.Abort()
			return
		}

		cid := c.Request.Header.Get("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
		c.Request = c.Request.WithContext(ctx)
		c.Header("x-correlation-id", cid)
		c.Next()
	}
}
