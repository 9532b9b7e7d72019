package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/neoflow/account-provisioner/internal/provisioning"
	"github.com/neoflow/account-provisioner/internal/shared/apierrors"
	"github.com/neoflow/account-provisioner/internal/shared/auth"
	"github.com/neoflow/account-provisioner/internal/shared/logging"
)

const maxEventBodyBytes = auth.MaxBodyBytes

var errInvalidPayload = errors.New("invalid payload")

// Provisioner handles "user created".
type Provisioner interface {
	Handle(ctx context.Context, ev provisioning.UserCreated) error
}

// Deprovisioner handles "user deleted".
type Deprovisioner interface {
	Handle(ctx context.Context, ev provisioning.UserDeleted) provisioning.DeprovisionResult
}

// Limits caps simultaneously executing invocations.
type Limits struct {
	MaxConcurrent  int
	Backlog        int
	BacklogTimeout time.Duration
}

// Options collects the dependencies of the event routes.
type Options struct {
	Provisioner     Provisioner
	Deprovisioner   Deprovisioner
	WebhookVerifier auth.Verifier
	PushVerifier    auth.Verifier
	Limits          Limits
	Logger          *slog.Logger
}

// RegisterRoutes registers the inbound event transports.
func RegisterRoutes(r chi.Router, opts Options) {
	r.Group(func(r chi.Router) {
		if opts.Limits.MaxConcurrent > 0 {
			r.Use(middleware.ThrottleBacklog(opts.Limits.MaxConcurrent, opts.Limits.Backlog, opts.Limits.BacklogTimeout))
		}

		r.With(auth.Middleware(opts.WebhookVerifier)).
			Post("/v1/webhooks/clerk", clerkWebhook(opts.Provisioner, opts.Deprovisioner, opts.Logger))
		r.With(auth.Middleware(opts.PushVerifier)).
			Post("/v1/events/pubsub", pubsubPush(opts.Provisioner, opts.Deprovisioner, opts.Logger))
	})
}

// provisionStatus maps a provisioning error onto the response code that drives redelivery.
func provisionStatus(err error) string {
	if errors.Is(err, provisioning.ErrInvalidEvent) {
		return apierrors.CodeBadRequest
	}
	return apierrors.CodeInternal
}

// invocationID prefers the transport's delivery id, then the chi request id.
func invocationID(r *http.Request, transportID string) string {
	if transportID != "" {
		return transportID
	}
	if d, ok := auth.DeliveryFromContext(r.Context()); ok && d.ID != "" {
		return d.ID
	}
	return middleware.GetReqID(r.Context())
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errInvalidPayload
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errInvalidPayload
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, uid string) {
	if logger == nil || err == nil {
		return
	}
	logging.FromRequest(ctx, logger).Error(message,
		slog.String("uid", uid),
		slog.Any("error", err),
	)
}
