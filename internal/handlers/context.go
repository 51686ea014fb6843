package handlers

import (
	"github.com/gin-gonic/gin"

	"realtime-chat/internal/apperr"
	"realtime-chat/internal/middleware"
)

func userIDFromContext(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

func userIDPtrFromContext(c *gin.Context) *string {
	if id := userIDFromContext(c); id != "" {
		return &id
	}
	return nil
}

// respond writes the success envelope with the given fields.
func respond(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

// respondError maps err onto its HTTP status and a {success:false,message} body.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperr.HTTPStatus(err), gin.H{"success": false, "message": apperr.MessageOf(err)})
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Validation("invalid request body"))
		return false
	}
	return true
}
