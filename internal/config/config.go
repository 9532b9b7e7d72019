package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/neoflow/account-provisioner/internal/account"
	"github.com/neoflow/account-provisioner/internal/provisioning"
	"github.com/neoflow/account-provisioner/internal/shared/auth"
	"github.com/neoflow/account-provisioner/internal/shared/envconfig"
)

// Config encapsulates the runtime configuration for the account provisioner.
type Config struct {
	Port         string    `validate:"required"`
	GCPProjectID string    `validate:"required_if=DataStore firestore"`
	DataStore    DataStore `validate:"oneof=firestore memory"`
	Firestore    FirestoreConfig
	Accounts     AccountsConfig
	Limits       LimitsConfig
	Webhook      WebhookConfig
	Push         PushConfig
}

// DataStore enumerates supported persistence backends.
type DataStore string

const (
	// DataStoreMemory keeps accounts in-memory (useful for local development/testing).
	DataStoreMemory DataStore = "memory"
	// DataStoreFirestore keeps accounts in Google Cloud Firestore.
	DataStoreFirestore DataStore = "firestore"
)

// FirestoreConfig tailors Firestore client behavior.
type FirestoreConfig struct {
	EmulatorHost string
}

// AccountsConfig holds the destination collections and the provisioning policy.
type AccountsConfig struct {
	Collection        string `validate:"required"`
	ArchiveCollection string `validate:"required,nefield=Collection"`
	DefaultProfileRef string `validate:"required"`
	DefaultPhotoURL   string `validate:"required,url"`
	DeletionPolicy    provisioning.DeletionPolicy
}

// LimitsConfig bounds simultaneously executing invocations.
type LimitsConfig struct {
	MaxConcurrent  int `validate:"min=1"`
	Backlog        int `validate:"min=0"`
	BacklogTimeout time.Duration
}

// WebhookConfig configures Clerk webhook authentication.
type WebhookConfig struct {
	Mode   auth.Mode `validate:"oneof=svix noop"`
	Secret string    `validate:"required_if=Mode svix"`
}

// PushConfig configures Pub/Sub push authentication.
type PushConfig struct {
	Mode           auth.Mode `validate:"oneof=oidc noop"`
	Audience       string    `validate:"required_if=Mode oidc"`
	ServiceAccount string
}

// Defaults returns the field-defaulting policy described by the configuration.
func (c AccountsConfig) Defaults() account.Defaults {
	return account.Defaults{
		ProfileRef: account.DocRef(c.DefaultProfileRef),
		PhotoURL:   c.DefaultPhotoURL,
	}
}

// Load reads environment variables into Config with validation.
func Load() (Config, error) {
	maxConcurrent, err := envconfig.GetInt("MAX_CONCURRENT_INVOCATIONS", 10)
	if err != nil {
		return Config{}, err
	}
	backlog, err := envconfig.GetInt("INVOCATION_BACKLOG", 50)
	if err != nil {
		return Config{}, err
	}
	backlogTimeout, err := envconfig.GetDuration("INVOCATION_BACKLOG_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	policy, err := provisioning.ParseDeletionPolicy(envconfig.Get("DELETION_POLICY", string(provisioning.DefaultDeletionPolicy)))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", ""),
		DataStore:    DataStore(strings.ToLower(envconfig.Get("DATASTORE", string(DataStoreFirestore)))),
		Firestore: FirestoreConfig{
			EmulatorHost: envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Accounts: AccountsConfig{
			Collection:        envconfig.Get("ACCOUNTS_COLLECTION", account.DefaultCollection),
			ArchiveCollection: envconfig.Get("ARCHIVE_COLLECTION", account.DefaultArchiveCollection),
			DefaultProfileRef: envconfig.Get("DEFAULT_PROFILE_REF", string(account.DefaultProfileRef)),
			DefaultPhotoURL:   envconfig.Get("DEFAULT_PHOTO_URL", account.DefaultPhotoURL),
			DeletionPolicy:    policy,
		},
		Limits: LimitsConfig{
			MaxConcurrent:  maxConcurrent,
			Backlog:        backlog,
			BacklogTimeout: backlogTimeout,
		},
		Webhook: WebhookConfig{
			Mode:   auth.Mode(strings.ToLower(envconfig.Get("WEBHOOK_AUTH_MODE", string(auth.ModeSvix)))),
			Secret: envconfig.Get("CLERK_WEBHOOK_SECRET", ""),
		},
		Push: PushConfig{
			Mode:           auth.Mode(strings.ToLower(envconfig.Get("PUSH_AUTH_MODE", string(auth.ModeNoop)))),
			Audience:       envconfig.Get("PUSH_AUDIENCE", ""),
			ServiceAccount: envconfig.Get("PUSH_SERVICE_ACCOUNT", ""),
		},
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := envconfig.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Accounts.Defaults().Validate(); err != nil {
		return err
	}
	return nil
}
