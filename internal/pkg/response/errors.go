package response

import (
	"bes-loan/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[domain.ErrorKind]int{
	domain.KindValidation:       fiber.StatusBadRequest,
	domain.KindPolicyViolation:  fiber.StatusUnprocessableEntity,
	domain.KindNotFound:         fiber.StatusNotFound,
	domain.KindForbidden:        fiber.StatusForbidden,
	domain.KindInvalidStatus:    fiber.StatusBadRequest,
	domain.KindInvalidState:     fiber.StatusConflict,
	domain.KindInvalidAmount:    fiber.StatusBadRequest,
	domain.KindAlreadyApplied:   fiber.StatusConflict,
	domain.KindUnauthenticated:  fiber.StatusUnauthorized,
	domain.KindConflict:         fiber.StatusConflict,
	domain.KindTransientNetwork: fiber.StatusBadGateway,
	domain.KindStorageFailure:   fiber.StatusServiceUnavailable,
	domain.KindInternal:         fiber.StatusInternalServerError,
}

// StatusForKind returns the HTTP status an error kind is reported with
func StatusForKind(kind domain.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// FromError sends err as a tagged error response. Storage and internal
// failures are reported without their cause.
func FromError(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	message := domain.MessageOf(err)

	switch kind {
	case domain.KindStorageFailure:
		message = "Service temporarily unavailable"
	case domain.KindInternal:
		message = "Internal Server Error"
	}

	return ErrorWithKind(c, StatusForKind(kind), string(kind), message)
}
