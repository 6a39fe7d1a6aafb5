package utility

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionId identifies one isolated backtest run. Identifiers are uuid v7 so
// that they sort by creation time.
type SessionId = uuid.UUID

func NewSessionId() SessionId {
	return uuid.Must(uuid.NewV7())
}

func ParseSessionId(s string) (SessionId, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("unable to parse session id %q: %w", s, err)
	}
	return id, nil
}
