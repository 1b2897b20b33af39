package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a random identifier namespaced by prefix, e.g. "co-5f0c...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
