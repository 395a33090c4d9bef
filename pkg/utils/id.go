package utils

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var idCounter uint64

// GenerateRunID generates a time-ordered run ID
func GenerateRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fall back to a timestamp and process-local counter
		count := atomic.AddUint64(&idCounter, 1)
		return fmt.Sprintf("run-%s-%x", time.Now().UTC().Format("20060102-150405"), count)
	}
	return "run-" + id.String()
}
