package httpadapter

import (
	"net/http"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

// mapErrorToHTTPStatus checks kinds in precedence order: a rejected
// credential wins over the failure it caused.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrAnalysisFailed),
		domain.IsKind(err, domain.ErrParse),
		domain.IsKind(err, domain.ErrUploadFailed),
		domain.IsKind(err, domain.ErrUpdateFailed),
		domain.IsKind(err, domain.ErrDirectory):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
