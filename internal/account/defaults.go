package account

import (
	"fmt"
	"net/url"
	"strings"
)

// Defaults applied on first provisioning.
const (
	DefaultProfileRef DocRef = "usersProfiles/profileUser"
	DefaultPhotoURL          = "https://cdn-icons-png.flaticon.com/512/219/219983.png"
)

// Defaults is the field-defaulting policy for newly provisioned accounts.
type Defaults struct {
	ProfileRef DocRef
	PhotoURL   string
}

// Validate checks the configured profile reference and placeholder URL.
func (d Defaults) Validate() error {
	if !d.ProfileRef.Valid() {
		return fmt.Errorf("default profile reference %q is not a document path", d.ProfileRef)
	}
	u, err := url.Parse(d.PhotoURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("default photo %q is not an absolute URL", d.PhotoURL)
	}
	return nil
}

// InitialFields builds the complete field set of a freshly provisioned account. Timestamps are left
// to the store.
func (d Defaults) InitialFields(uid, email, photoURL string) Fields {
	photo := strings.TrimSpace(photoURL)
	if photo == "" {
		photo = d.PhotoURL
	}

	return Fields{
		FieldUID:         uid,
		FieldEmail:       email,
		FieldFirstName:   "",
		FieldLastName:    "",
		FieldIsActive:    false,
		FieldUserProfile: d.ProfileRef,
		FieldPhoto:       photo,
		FieldCreatedAt:   ServerTimestamp,
		FieldLastLogin:   ServerTimestamp,
	}
}
