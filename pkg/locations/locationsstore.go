// FILE: pkg/locations/locationsstore.go

package locations

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for an ID.
var ErrNotFound = errors.New("location not found")

// Store is the interface for storing and retrieving the last-known position
// of registered coordinates.
type Store interface {
	Save(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, id uuid.UUID) (Record, error)
	List(ctx context.Context) ([]Record, error)
}
