package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/idtoken"
)

// ErrFederatedVerification is returned when a provider token cannot be
// verified against Google's public keys.
var ErrFederatedVerification = errors.New("federated identity verification failed")

// FederatedIdentity is the verified identity asserted by the provider.
type FederatedIdentity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// FederatedVerifier verifies a provider-issued identity token.
type FederatedVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (FederatedIdentity, error)
}

// GoogleVerifier verifies Google ID tokens against the configured OAuth
// client id (the token audience).
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, token string) (FederatedIdentity, error) {
	if strings.TrimSpace(token) == "" {
		return FederatedIdentity{}, ErrFederatedVerification
	}

	payload, err := idtoken.Validate(ctx, token, g.clientID)
	if err != nil {
		return FederatedIdentity{}, ErrFederatedVerification
	}

	identity := FederatedIdentity{
		Subject: payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	if identity.Subject == "" || identity.Email == "" {
		return FederatedIdentity{}, ErrFederatedVerification
	}
	return identity, nil
}

func claimString(claims map[string]any, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}
