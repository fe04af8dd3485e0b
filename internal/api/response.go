package api

import (
	"net/http"

	"coffee-shop/internal/apperr"
	"coffee-shop/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondCreated(c *gin.Context, message string, data interface{}) {
	body := gin.H{
		"success": true,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusCreated, body)
}

// respondError writes the failure envelope. The cause of internal errors is
// logged and never returned.
func respondError(c *gin.Context, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{
		"success":   false,
		"error":     apperr.PublicMessage(err, fallback),
		"errorType": apperr.KindOf(err),
	})
}
