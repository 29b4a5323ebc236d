package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jobhive/jobhive-api/internal/middleware"
	appErrors "github.com/jobhive/jobhive-api/pkg/errors"
	"github.com/jobhive/jobhive-api/pkg/token"
)

// CurrentUser returns the verified claims set by the JWT middleware.
func CurrentUser(c *gin.Context) (*token.Claims, error) {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil, appErrors.ErrUnauthorized
	}
	claims, ok := value.(*token.Claims)
	if !ok {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}
