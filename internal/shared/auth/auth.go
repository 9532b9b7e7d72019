package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/neoflow/account-provisioner/internal/shared/apierrors"
)

// Mode represents the strategy used to authenticate an inbound delivery.
type Mode string

const (
	// ModeSvix verifies Svix webhook signatures (used by Clerk).
	ModeSvix Mode = "svix"
	// ModeOIDC verifies Google-signed ID tokens attached to Pub/Sub push requests.
	ModeOIDC Mode = "oidc"
	// ModeNoop accepts every delivery (local development and tests).
	ModeNoop Mode = "noop"
)

// MaxBodyBytes bounds the payload read for verification.
const MaxBodyBytes = 1 << 20

// ErrUnauthenticated is wrapped by every verification failure.
var ErrUnauthenticated = errors.New("delivery not authenticated")

// Config captures the inputs required to initialize a verifier.
type Config struct {
	Mode Mode
	// Secret is the Svix signing secret ("whsec_..."), svix mode only.
	Secret string
	// Tolerance bounds the accepted clock drift of svix-timestamp. Defaults to 5 minutes.
	Tolerance time.Duration
	// Audience is the expected aud claim, oidc mode only.
	Audience string
	// ServiceAccount optionally pins the email claim of the push identity, oidc mode only.
	ServiceAccount string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Delivery describes an authenticated inbound delivery.
type Delivery struct {
	// ID is the transport's delivery identifier when it has one (svix-id).
	ID        string
	Subject   string
	Timestamp time.Time
}

// Verifier authenticates a delivery from its headers and raw body.
type Verifier interface {
	Verify(ctx context.Context, header http.Header, body []byte) (Delivery, error)
}

type ctxKey string

const deliveryCtxKey ctxKey = "provisioner:delivery"

// NewVerifier constructs a Verifier matching the supplied configuration.
func NewVerifier(cfg Config) (Verifier, error) {
	switch cfg.Mode {
	case ModeSvix:
		return newSvixVerifier(cfg)
	case ModeOIDC:
		return newOIDCVerifier(cfg)
	case ModeNoop:
		return noopVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

// Middleware authenticates the request body before handing it on. The body is buffered and
// restored so the wrapped handler can decode it again.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
			if err != nil {
				apierrors.Write(w, r, apierrors.CodeBadRequest, "unable to read body")
				return
			}

			delivery, err := verifier.Verify(r.Context(), r.Header, body)
			if err != nil {
				apierrors.Write(w, r, apierrors.CodeUnauthorized, err.Error())
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), deliveryCtxKey, delivery)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeliveryFromContext extracts the authenticated delivery from the request context.
func DeliveryFromContext(ctx context.Context) (Delivery, bool) {
	value, ok := ctx.Value(deliveryCtxKey).(Delivery)
	return value, ok
}

type noopVerifier struct{}

func (noopVerifier) Verify(_ context.Context, header http.Header, _ []byte) (Delivery, error) {
	return Delivery{ID: header.Get(headerSvixID)}, nil
}
