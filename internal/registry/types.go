package registry

import (
	"fmt"
	"time"
)

// Architecture identifies the network family an artifact's weights were
// trained for. The engine treats blobs as opaque; this is registry
// metadata.
type Architecture string

const (
	ArchResNet18 Architecture = "resnet18"
	ArchEffNetB0 Architecture = "effnet_b0"
	ArchMLP      Architecture = "mlp"
)

// ParseArchitecture validates the user-supplied architecture value.
func ParseArchitecture(s string) (Architecture, error) {
	switch Architecture(s) {
	case ArchResNet18, ArchEffNetB0, ArchMLP:
		return Architecture(s), nil
	}
	return "", &ValidationError{Field: "arch", Reason: fmt.Sprintf("must be one of %s, %s, %s", ArchResNet18, ArchEffNetB0, ArchMLP)}
}

// Artifact is one registered set of model weights.
//
// Invariants maintained by every Store implementation:
//   - at most one artifact has Active set, across the whole registry;
//   - Active implies Enabled.
type Artifact struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Architecture Architecture `json:"arch"`
	Version      string       `json:"version"`
	Description  string       `json:"description"`
	BlobRef      string       `json:"-"`
	Enabled      bool         `json:"enabled"`
	Active       bool         `json:"is_active"`
	OwnerID      string       `json:"created_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Event logs a single inference request. Both references are nullable so
// deleting a user or an artifact never cascades into history.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	ModelID   string    `json:"model_id,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates registry and usage numbers for the admin overview.
type Stats struct {
	TotalModels   int          `json:"total"`
	EnabledModels int          `json:"enabled"`
	Active        *Artifact    `json:"active"`
	ActiveUsers   int          `json:"active_users_7d"`
	Daily         []DailyCount `json:"daily_inferences_7d"`
}

// DailyCount is one day's inference volume.
type DailyCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}
