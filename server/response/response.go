package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apiError "github.com/techagentng/converse/errors"
	"gorm.io/gorm"
)

// JSON writes the standard response envelope.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	errMessage := ""
	if err != nil {
		errMessage = err.Error()
	}
	responsedata := gin.H{
		"message": message,
		"data":    data,
		"errors":  errMessage,
		"status":  http.StatusText(status),
	}
	c.JSON(status, responsedata)
}

// HandleErrors maps service-layer failures onto HTTP responses. Typed errors
// carry their own status; anything else is an internal failure and is not
// leaked to the caller.
func HandleErrors(c *gin.Context, err error) {
	var typed *apiError.Error
	switch {
	case errors.As(err, &typed):
		JSON(c, "", typed.Status, nil, typed)
	case errors.Is(err, gorm.ErrRecordNotFound):
		JSON(c, "", http.StatusNotFound, nil, apiError.ErrNotFound)
	default:
		JSON(c, "", http.StatusInternalServerError, nil, apiError.ErrInternalServerError)
	}
}
