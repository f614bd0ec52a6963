package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veridia/veridia-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, err error) {
	apiErr := apierr.FromDomain(err)
	c.JSON(apiErr.Status, ErrorEnvelope{
		Error: APIError{
			Message: apiErr.Error(),
			Code:    apiErr.Code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
