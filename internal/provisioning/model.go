package provisioning

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neoflow/account-provisioner/internal/account"
)

// ErrInvalidEvent indicates an event that can never be applied, such as one without a uid.
var ErrInvalidEvent = errors.New("invalid user event")

// UserCreated is the provider's "user created" notification.
type UserCreated struct {
	UID      string
	Email    string
	PhotoURL string
	// InvocationID correlates log lines of one delivery; minted when the transport has none.
	InvocationID string
}

// UserDeleted is the provider's "user deleted" notification.
type UserDeleted struct {
	UID          string
	InvocationID string
}

// DeletionPolicy selects what deprovisioning does with the account document.
type DeletionPolicy string

const (
	// PolicyHardDelete removes the document. This is the default.
	PolicyHardDelete DeletionPolicy = "hard-delete"
	// PolicyArchive moves the document into the archive collection.
	PolicyArchive DeletionPolicy = "archive"
	// PolicySoftDelete keeps the document, deactivates it and stamps deletedAt.
	PolicySoftDelete DeletionPolicy = "soft-delete"
)

// DefaultDeletionPolicy is used when none is configured.
const DefaultDeletionPolicy = PolicyHardDelete

// ParseDeletionPolicy maps a configuration value onto a DeletionPolicy. Empty means the default.
func ParseDeletionPolicy(raw string) (DeletionPolicy, error) {
	switch p := DeletionPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return DefaultDeletionPolicy, nil
	case PolicyHardDelete, PolicyArchive, PolicySoftDelete:
		return p, nil
	default:
		return "", fmt.Errorf("unsupported deletion policy: %q", raw)
	}
}

// Outcomes specific to deprovisioning, next to the store's own outcomes.
const (
	OutcomeFailed  account.DeleteOutcome = "failed"
	OutcomeSkipped account.DeleteOutcome = "skipped"
)

// DeprovisionResult reports what a deprovisioning invocation did. Err is set only with OutcomeFailed;
// it is informational and never turned into an invocation failure.
type DeprovisionResult struct {
	UID     string
	Policy  DeletionPolicy
	Outcome account.DeleteOutcome
	Err     error
}

// IDGenerator produces invocation identifiers.
type IDGenerator interface {
	NewID() string
}
