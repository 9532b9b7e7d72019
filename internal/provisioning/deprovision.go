package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neoflow/account-provisioner/internal/account"
)

// DeprovisionHandler applies the configured DeletionPolicy to the account of a deleted provider user.
type DeprovisionHandler struct {
	store  account.Store
	policy DeletionPolicy
	ids    IDGenerator
	logger *slog.Logger
}

// NewDeprovisionHandler wires a DeprovisionHandler. ids may be nil.
func NewDeprovisionHandler(store account.Store, policy DeletionPolicy, ids IDGenerator, logger *slog.Logger) (*DeprovisionHandler, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	policy, err := ParseDeletionPolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = NewUUIDGenerator()
	}
	return &DeprovisionHandler{store: store, policy: policy, ids: ids, logger: logger}, nil
}

// Policy returns the deletion policy in effect.
func (h *DeprovisionHandler) Policy() DeletionPolicy {
	return h.policy
}

// Handle performs one store call and reports its outcome. It never fails the invocation: an absent
// document is OutcomeAlreadyAbsent and store errors come back as OutcomeFailed with Err set.
func (h *DeprovisionHandler) Handle(ctx context.Context, ev UserDeleted) DeprovisionResult {
	uid := strings.TrimSpace(ev.UID)
	result := DeprovisionResult{UID: uid, Policy: h.policy}

	invocationID := ev.InvocationID
	if invocationID == "" {
		invocationID = h.ids.NewID()
	}
	logger := h.logger.With(
		slog.String("uid", uid),
		slog.String("invocationId", invocationID),
		slog.String("policy", string(h.policy)),
	)

	if uid == "" {
		result.Outcome = OutcomeSkipped
		logger.Warn("deprovision skipped: missing uid")
		return result
	}

	outcome, err := h.remove(ctx, uid)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		logger.Warn("deprovision failed; not retried", slog.Any("error", err))
		return result
	}

	result.Outcome = outcome
	logger.Info("account deprovisioned", slog.String("outcome", string(outcome)))
	return result
}

func (h *DeprovisionHandler) remove(ctx context.Context, uid string) (account.DeleteOutcome, error) {
	switch h.policy {
	case PolicyArchive:
		return h.store.Archive(ctx, uid)
	case PolicySoftDelete:
		return h.store.MarkDeleted(ctx, uid)
	case PolicyHardDelete:
		return h.store.Delete(ctx, uid)
	default:
		return "", fmt.Errorf("unsupported deletion policy: %q", h.policy)
	}
}
