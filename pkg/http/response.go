package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// retryAfterSeconds is advertised on 429 and 503 responses.
const retryAfterSeconds = 30

func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// ListResponse writes history rows with their count.
func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return DataResponse(c, http.StatusOK, &ListDataResponse{Rows: rows, Total: total})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse writes the []ValidationError produced by ReadAndValidateRequest.
func BadRequestResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// AppErrorResponse writes err as a single-element error list. Errors that are not
// *AppError become an opaque 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
	}
	if appErr.Retryable() {
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
