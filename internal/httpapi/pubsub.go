package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/neoflow/account-provisioner/internal/provisioning"
	"github.com/neoflow/account-provisioner/internal/shared/apierrors"
	"github.com/neoflow/account-provisioner/internal/shared/events"
	"github.com/neoflow/account-provisioner/internal/shared/logging"
)

// pubsubPush accepts push deliveries from a subscription on events.TopicUserEvents. Any 2xx acks the
// message; anything else makes Pub/Sub redeliver.
func pubsubPush(provisioner Provisioner, deprovisioner Deprovisioner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var env events.PushEnvelope
		if err := decodeBody(w, r, &env); err != nil {
			apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
			return
		}
		msg := env.Message

		switch msg.EventType() {
		case events.TypeUserCreated:
			var ev events.UserCreated
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				apierrors.Write(w, r, apierrors.CodeBadRequest, errInvalidPayload.Error())
				return
			}
			err := provisioner.Handle(r.Context(), provisioning.UserCreated{
				UID:          ev.UserID,
				Email:        ev.Email,
				PhotoURL:     ev.PhotoURL,
				InvocationID: invocationID(r, msg.MessageID),
			})
			if err != nil {
				logRequestError(r.Context(), logger, "pubsub user.created not applied", err, ev.UserID)
				apierrors.Write(w, r, provisionStatus(err), "failed to provision account")
				return
			}

		case events.TypeUserDeleted:
			var ev events.UserDeleted
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				apierrors.Write(w, r, apierrors.CodeBadRequest, errInvalidPayload.Error())
				return
			}
			deprovisioner.Handle(r.Context(), provisioning.UserDeleted{
				UID:          ev.UserID,
				InvocationID: invocationID(r, msg.MessageID),
			})

		default:
			if logger != nil {
				logging.FromRequest(r.Context(), logger).Info("pubsub message ignored",
					slog.String("eventType", msg.EventType()),
					slog.String("messageId", msg.MessageID),
					slog.String("subscription", env.Subscription),
				)
			}
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
