package apperr

import (
	"errors"
	"net/http"
)

// StatusCode 把错误映射为 HTTP 状态码，未识别的错误一律 500
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
