// internal/api/respond.go
package api

import (
	"strconv"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/common/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func abortWithError(c *gin.Context, err error) {
	stdErr := apperrors.Normalize(err)
	detail := stdErr.Message
	if stdErr.Details != "" && stdErr.Code == apperrors.ErrCodeValidationFailed {
		detail = stdErr.Message + ": " + stdErr.Details
	}
	c.AbortWithStatusJSON(apperrors.HTTPStatus(stdErr.Code), errorBody{
		Error:  string(stdErr.Code),
		Detail: detail,
	})
}

// bindJSON validates the body against schema and decodes it into dst.
func bindJSON(c *gin.Context, schema *validation.Schema, dst interface{}) bool {
	raw, err := c.GetRawData()
	if err != nil {
		abortWithError(c, apperrors.NewValidationError("unreadable request body", err.Error()))
		return false
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := schema.Validate(raw); err != nil {
		abortWithError(c, err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		abortWithError(c, apperrors.NewValidationError("malformed request body", err.Error()))
		return false
	}
	return true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		abortWithError(c, apperrors.NewValidationError("invalid "+name, err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

// page reads the skip and limit query parameters. Missing values are zero and
// left to the services to default.
func page(c *gin.Context) (int, int, bool) {
	skip, err := intQuery(c, "skip")
	if err != nil {
		abortWithError(c, apperrors.NewValidationError("invalid skip", err.Error()))
		return 0, 0, false
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		abortWithError(c, apperrors.NewValidationError("invalid limit", err.Error()))
		return 0, 0, false
	}
	return skip, limit, true
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
