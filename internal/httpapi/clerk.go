package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/neoflow/account-provisioner/internal/provisioning"
	"github.com/neoflow/account-provisioner/internal/shared/apierrors"
	"github.com/neoflow/account-provisioner/internal/shared/events"
)

// clerkEvent is the envelope of a Clerk webhook.
type clerkEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type clerkUser struct {
	ID                    string       `json:"id"`
	PrimaryEmailAddressID string       `json:"primary_email_address_id"`
	EmailAddresses        []clerkEmail `json:"email_addresses"`
	ImageURL              string       `json:"image_url"`
	ProfileImageURL       string       `json:"profile_image_url"`
}

type clerkEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkDeletedObject struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// primaryEmail returns the primary address, else the first one, else "".
func (u clerkUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID != "" && e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (u clerkUser) photoURL() string {
	if u.ImageURL != "" {
		return u.ImageURL
	}
	return u.ProfileImageURL
}

func clerkWebhook(provisioner Provisioner, deprovisioner Deprovisioner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev clerkEvent
		if err := decodeBody(w, r, &ev); err != nil {
			apierrors.Write(w, r, apierrors.CodeBadRequest, err.Error())
			return
		}

		switch ev.Type {
		case events.TypeUserCreated:
			var u clerkUser
			if err := json.Unmarshal(ev.Data, &u); err != nil {
				apierrors.Write(w, r, apierrors.CodeBadRequest, errInvalidPayload.Error())
				return
			}
			err := provisioner.Handle(r.Context(), provisioning.UserCreated{
				UID:          u.ID,
				Email:        u.primaryEmail(),
				PhotoURL:     u.photoURL(),
				InvocationID: invocationID(r, ""),
			})
			if err != nil {
				logRequestError(r.Context(), logger, "clerk user.created not applied", err, u.ID)
				apierrors.Write(w, r, provisionStatus(err), "failed to provision account")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "provisioned", "uid": u.ID})

		case events.TypeUserDeleted:
			var d clerkDeletedObject
			if err := json.Unmarshal(ev.Data, &d); err != nil {
				apierrors.Write(w, r, apierrors.CodeBadRequest, errInvalidPayload.Error())
				return
			}
			res := deprovisioner.Handle(r.Context(), provisioning.UserDeleted{
				UID:          d.ID,
				InvocationID: invocationID(r, ""),
			})
			writeJSON(w, http.StatusOK, map[string]string{
				"status":  "deprovisioned",
				"uid":     res.UID,
				"policy":  string(res.Policy),
				"outcome": string(res.Outcome),
			})

		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "type": ev.Type})
		}
	}
}
