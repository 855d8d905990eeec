package middlewares

import (
	"github.com/gin-gonic/gin"
)

// abortError writes the same envelope the handlers use and stops the chain.
func abortError(c *gin.Context, status int, code, message string) {
	reqID, _ := c.Get(CtxRequestID)
	id, _ := reqID.(string)

	c.AbortWithStatusJSON(status, gin.H{
		"message": message,
		"error": gin.H{
			"code":      code,
			"message":   message,
			"requestId": id,
		},
	})
}
