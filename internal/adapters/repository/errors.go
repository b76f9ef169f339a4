package repository

import (
	"fmt"

	"github.com/okian/affinity/internal/domain/model"
)

// unavailable marks an infrastructure failure of op while keeping the cause.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}
