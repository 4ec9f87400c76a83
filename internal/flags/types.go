package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("pause flag not found")

// PauseFlag records when an operator paused one program's watcher and why,
// keyed by the program name passed to cmd/sentinel.
type PauseFlag struct {
	Program   string    `json:"program"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updated_at"`
}
