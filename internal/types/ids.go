// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

// CorrelationID is the opaque key linking an interaction event to the
// completion event it eventually produces.
type CorrelationID string

func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.New().String())
}
