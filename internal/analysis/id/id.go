// Package id provides unique identifier generation for analysis runs.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique run ID.
// Format: run-<timestamp>-<random>
// Example: run-1701432000-a1b2c3d4
func Generate() string {
	return generateAt(time.Now())
}

func generateAt(t time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("run-%d-%s", t.Unix(), random[:8])
}
