package history

import "time"

const SchemaVersion = 2

// Cycle summarizes one build cycle.
type Cycle struct {
	ID          string        `json:"id"`
	Timestamp   time.Time     `json:"timestamp"`
	Strategy    string        `json:"strategy"`
	Added       int           `json:"added"`
	Updated     int           `json:"updated"`
	Same        int           `json:"same"`
	Deleted     int           `json:"deleted"`
	Diagnostics int           `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
	Fallback    bool          `json:"fallback"`
	Units       []UnitRecord  `json:"units,omitempty"`
}

// UnitRecord is the state of one unit within a cycle.
type UnitRecord struct {
	Path        string `json:"path"`
	State       string `json:"state"`
	Remote      bool   `json:"remote"`
	Diagnostics int    `json:"diagnostics"`
}

// Changed counts the units the engine had to see.
func (c Cycle) Changed() int {
	return c.Added + c.Updated + c.Deleted
}
