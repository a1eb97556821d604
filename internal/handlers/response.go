package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sanctuarylabs/sanctuary-backend/internal/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError maps service errors onto the HTTP taxonomy. Anything that is
// not an *apierr.Error becomes a generic 500; the detail is for the log,
// not the client.
func RespondError(c *gin.Context, err error) {
	apiErr := apierr.From(err)
	msg := apiErr.Error()
	if apiErr.Status >= 500 {
		msg = "Internal server error"
		if apiErr.Code == apierr.CodeUpstreamConfigMissing {
			msg = "Required API keys not configured"
		}
	}
	c.AbortWithStatusJSON(apiErr.Status, ErrorEnvelope{Error: APIError{Message: msg, Code: apiErr.Code}})
}
