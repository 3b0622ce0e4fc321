package token

import (
	"time"

	"github.com/google/uuid"
)

// Maker creates and verifies the anonymous wizard-client tokens. Keeping it
// behind an interface lets the HTTP layer and tests swap the implementation
// without touching the controllers.
type Maker interface {
	CreateToken(clientID uuid.UUID, duration time.Duration) (string, error)

	VerifyToken(token string) (*Payload, error)
}
