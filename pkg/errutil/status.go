package errutil

import "net/http"

type CoreStatus string

const (
	StatusBadRequest         CoreStatus = "bad_request"
	StatusValidationFailed   CoreStatus = "validation_failed"
	StatusUnauthorized       CoreStatus = "unauthorized"
	StatusForbidden          CoreStatus = "forbidden"
	StatusNotFound           CoreStatus = "not_found"
	StatusConflict           CoreStatus = "conflict"
	StatusTooManyRequests    CoreStatus = "too_many_requests"
	StatusInternal           CoreStatus = "internal"
	StatusServiceUnavailable CoreStatus = "service_unavailable"
)

func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
