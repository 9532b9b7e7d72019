package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

var (
	errMissingAuthHeader = errors.New("authorization header missing")
	errInvalidAuthHeader = errors.New("authorization header is malformed")
	errUnexpectedCaller  = errors.New("token issued to an unexpected service account")
)

// tokenValidator matches idtoken.Validate; swapped in tests.
type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// oidcVerifier validates the Google-signed ID token Pub/Sub attaches to push requests.
type oidcVerifier struct {
	audience       string
	serviceAccount string
	validate       tokenValidator
}

func newOIDCVerifier(cfg Config) (Verifier, error) {
	if cfg.Audience == "" {
		return nil, fmt.Errorf("push audience is required")
	}
	return &oidcVerifier{
		audience:       cfg.Audience,
		serviceAccount: cfg.ServiceAccount,
		validate:       idtoken.Validate,
	}, nil
}

func (v *oidcVerifier) Verify(ctx context.Context, header http.Header, _ []byte) (Delivery, error) {
	token, err := bearerToken(header)
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	payload, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: token verification failed: %w", ErrUnauthenticated, err)
	}

	if v.serviceAccount != "" {
		email, _ := payload.Claims["email"].(string)
		if !strings.EqualFold(email, v.serviceAccount) {
			return Delivery{}, fmt.Errorf("%w: %w", ErrUnauthenticated, errUnexpectedCaller)
		}
	}

	return Delivery{Subject: payload.Subject, Timestamp: time.Unix(payload.IssuedAt, 0)}, nil
}

func bearerToken(header http.Header) (string, error) {
	raw := header.Get("Authorization")
	if raw == "" {
		return "", errMissingAuthHeader
	}

	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errInvalidAuthHeader
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errInvalidAuthHeader
	}
	return token, nil
}
