package httputil

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/quote-engine/internal/common"
	"github.com/hxuan190/quote-engine/internal/domain"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Error(c *gin.Context, status int, err string) {
	c.JSON(status, Response{
		Success: false,
		Error:   err,
	})
}

// HTTPError writes he and aborts the handler chain.
func HTTPError(c *gin.Context, he *common.HttpError) {
	c.AbortWithStatusJSON(he.StatusCode, Response{
		Success: false,
		Error:   he.Message,
		Code:    he.Code,
	})
}

func BadRequest(c *gin.Context, err string) {
	HTTPError(c, common.HTTPErrorBadRequest(err))
}

func NotFound(c *gin.Context, err string) {
	HTTPError(c, common.HTTPErrorNotFound(err))
}

func InternalError(c *gin.Context, err string) {
	HTTPError(c, common.HTTPErrorInternalError(err))
}

// HandleError maps a quote engine error to its HTTP status.
func HandleError(c *gin.Context, err error) {
	HTTPError(c, ToHttpError(err))
}

func ToHttpError(err error) *common.HttpError {
	var he *common.HttpError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, domain.ErrMalformedRoute),
		errors.Is(err, domain.ErrStateShapeMismatch),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidPriceLimit),
		errors.Is(err, domain.ErrInvalidCurveState):
		return common.HTTPErrorBadRequest(err.Error())
	case errors.Is(err, domain.ErrUnresolvedPool):
		return common.HTTPErrorNotFound(err.Error())
	case errors.Is(err, domain.ErrNoProgress),
		errors.Is(err, domain.ErrPartialFill):
		return common.HTTPErrorUnprocessable(err.Error())
	default:
		return common.HTTPErrorInternalError(err.Error())
	}
}
