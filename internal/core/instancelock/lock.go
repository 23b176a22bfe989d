// Package instancelock keeps two mutating acctabs processes from owning the
// same data directory.
package instancelock

import (
	"encoding/json"
	"errors"
	"os"
	"time"
)

// FileName is the lock file inside the data directory
const FileName = "acctabs.lock"

// ErrLocked is returned when another process holds the lock
var ErrLocked = errors.New("data directory is in use by another acctabs process")

// Owner is written into the lock file for diagnostics
type Owner struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
}

// ReadOwner reads the diagnostics of whoever wrote the lock file last
func ReadOwner(path string) (*Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var o Owner
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func currentOwner() Owner {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return Owner{PID: os.Getpid(), Hostname: hostname, StartedAt: time.Now()}
}
