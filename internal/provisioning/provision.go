package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neoflow/account-provisioner/internal/account"
)

// ProvisionHandler writes the default account document for a newly created provider user.
type ProvisionHandler struct {
	store    account.Store
	defaults account.Defaults
	ids      IDGenerator
	logger   *slog.Logger
}

// NewProvisionHandler wires a ProvisionHandler. ids may be nil.
func NewProvisionHandler(store account.Store, defaults account.Defaults, ids IDGenerator, logger *slog.Logger) (*ProvisionHandler, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	return &ProvisionHandler{store: store, defaults: defaults, ids: ids, logger: logger}, nil
}

// Handle issues exactly one set-if-absent merge of the default fields, so redelivery of the same
// event never resets values written in the meantime. A store failure is returned so the platform
// redelivers.
func (h *ProvisionHandler) Handle(ctx context.Context, ev UserCreated) error {
	uid := strings.TrimSpace(ev.UID)
	if uid == "" {
		return fmt.Errorf("%w: missing uid", ErrInvalidEvent)
	}

	invocationID := ev.InvocationID
	if invocationID == "" {
		invocationID = h.ids.NewID()
	}
	logger := h.logger.With(slog.String("uid", uid), slog.String("invocationId", invocationID))

	fields := h.defaults.InitialFields(uid, ev.Email, ev.PhotoURL)
	if err := h.store.MergeUpsert(ctx, uid, fields); err != nil {
		logger.Error("provision account failed", slog.Any("error", err))
		return fmt.Errorf("provision %s: %w", uid, err)
	}

	logger.Info("account provisioned")
	return nil
}
