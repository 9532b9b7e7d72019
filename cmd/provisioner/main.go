package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"

	"github.com/neoflow/account-provisioner/internal/account"
	"github.com/neoflow/account-provisioner/internal/config"
	"github.com/neoflow/account-provisioner/internal/httpapi"
	"github.com/neoflow/account-provisioner/internal/provisioning"
	"github.com/neoflow/account-provisioner/internal/shared/auth"
	"github.com/neoflow/account-provisioner/internal/shared/logging"
	sharedserver "github.com/neoflow/account-provisioner/internal/shared/server"
)

const serviceName = "account-provisioner"

func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName)

	store, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		panic(fmt.Errorf("store init error: %w", err))
	}
	defer cleanup()

	ids := provisioning.NewUUIDGenerator()
	provisioner, err := provisioning.NewProvisionHandler(store, cfg.Accounts.Defaults(), ids, logger)
	if err != nil {
		panic(fmt.Errorf("provision handler error: %w", err))
	}
	deprovisioner, err := provisioning.NewDeprovisionHandler(store, cfg.Accounts.DeletionPolicy, ids, logger)
	if err != nil {
		panic(fmt.Errorf("deprovision handler error: %w", err))
	}

	webhookVerifier, err := auth.NewVerifier(auth.Config{
		Mode:   cfg.Webhook.Mode,
		Secret: cfg.Webhook.Secret,
	})
	if err != nil {
		panic(fmt.Errorf("webhook verifier error: %w", err))
	}
	pushVerifier, err := auth.NewVerifier(auth.Config{
		Mode:           cfg.Push.Mode,
		Audience:       cfg.Push.Audience,
		ServiceAccount: cfg.Push.ServiceAccount,
	})
	if err != nil {
		panic(fmt.Errorf("push verifier error: %w", err))
	}

	logger.Info("provisioner configured",
		slog.String("datastore", string(cfg.DataStore)),
		slog.String("collection", cfg.Accounts.Collection),
		slog.String("deletionPolicy", string(deprovisioner.Policy())),
		slog.Int("maxConcurrentInvocations", cfg.Limits.MaxConcurrent),
	)

	health := map[string]string{
		"datastore":      string(cfg.DataStore),
		"deletionPolicy": string(deprovisioner.Policy()),
	}
	router := sharedserver.NewRouter(serviceName, health, func(r chi.Router) {
		httpapi.RegisterRoutes(r, httpapi.Options{
			Provisioner:     provisioner,
			Deprovisioner:   deprovisioner,
			WebhookVerifier: webhookVerifier,
			PushVerifier:    pushVerifier,
			Limits: httpapi.Limits{
				MaxConcurrent:  cfg.Limits.MaxConcurrent,
				Backlog:        cfg.Limits.Backlog,
				BacklogTimeout: cfg.Limits.BacklogTimeout,
			},
			Logger: logger,
		})
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
		panic(err)
	}
}

func newStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (account.Store, func(), error) {
	switch cfg.DataStore {
	case config.DataStoreFirestore:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				return nil, nil, fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err)
			}
		}

		client, err := firestore.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}

		store := account.NewFirestoreStore(client, cfg.Accounts.Collection, cfg.Accounts.ArchiveCollection)
		cleanup := func() {
			_ = client.Close()
		}
		return store, cleanup, nil
	default:
		logger.Warn("using in-memory account store; data is lost on restart")
		return account.NewMemoryStore(nil), func() {}, nil
	}
}
