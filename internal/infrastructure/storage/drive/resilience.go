package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	Wait       time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "drive status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("drive %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("drive %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
		Wait:       resilience.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// RetryAfter is the delay the server asked for, zero when none.
func (e *HTTPStatusError) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.Wait
}

// rateLimited reports Drive's quota rejections, which arrive as 403 rather
// than 429.
func (e *HTTPStatusError) rateLimited() bool {
	return e.StatusCode == http.StatusForbidden &&
		(strings.Contains(e.Body, "rateLimitExceeded") || strings.Contains(e.Body, "userRateLimitExceeded"))
}

func classifyDriveError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if resilience.RetryableHTTPStatus(statusErr.StatusCode) || statusErr.rateLimited() {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

// mapDriveError gives remote failures their domain kind. A 401 means the
// access token is no longer accepted.
func mapDriveError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			return domain.WrapError(domain.ErrUnauthorized, "drive "+operation, err)
		case http.StatusNotFound:
			return domain.WrapError(domain.ErrNotFound, "drive "+operation, err)
		}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	class := classifyDriveError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "drive "+operation, err)
	}
	return err
}
