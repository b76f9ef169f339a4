package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/affinity/internal/adapters/mq/queue"
	"github.com/okian/affinity/internal/domain/model"
	"github.com/okian/affinity/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrRateLimited  = errors.New("too many requests, try again later")
)

// WrapKind annotates err with the handler operation and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// writeServiceError translates a service error into a status and code.
// Server side failures never leak their message.
func writeServiceError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, "validation_error", validationMessage(verrs))
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, model.ErrInvalidIdentifier):
		writeError(w, http.StatusBadRequest, "invalid_identifier", err)
	case errors.Is(err, model.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, "invalid_event", err)
	case errors.Is(err, model.ErrUnknownGame):
		writeError(w, http.StatusNotFound, "game_not_found", err)
	case errors.Is(err, model.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, queue.ErrFull), errors.Is(err, ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
	case errors.Is(err, model.ErrStoreUnavailable):
		log.Error(ctx, "store unavailable", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", nil)
	default:
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func validationMessage(verrs validator.ValidationErrors) error {
	if len(verrs) == 0 {
		return ErrBadRequest
	}
	fe := verrs[0]
	if fe.Param() != "" {
		return fmt.Errorf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
	}
	return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
}
