// Package oidc verifies bearer tokens issued by an OpenID Connect provider
// such as Keycloak.
package oidc

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/edusync/platform-sync/pkg/middleware"
)

// Verifier checks ID tokens against the provider's published keys.
type Verifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the provider at issuer. ctx bounds the discovery
// request only.
func NewVerifier(ctx context.Context, issuer, clientID string) (*Verifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC provider %s: %w", issuer, err)
	}
	return &Verifier{verifier: provider.Verifier(&oidc.Config{ClientID: clientID})}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	tok, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// KeycloakIssuer returns the issuer URL of a Keycloak realm. An empty realm
// means baseURL already is the issuer.
func KeycloakIssuer(baseURL, realm string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if realm == "" {
		return baseURL
	}
	return baseURL + "/realms/" + realm
}
