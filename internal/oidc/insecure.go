package oidc

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edusync/platform-sync/internal/tokens"
	"github.com/edusync/platform-sync/pkg/middleware"
)

// InsecureVerifier decodes token claims WITHOUT checking the signature.
// It exists for integration environments and is only enabled through
// ALLOW_INSECURE_TOKEN=true.
type InsecureVerifier struct {
	parser *jwt.Parser
}

func NewInsecureVerifier() *InsecureVerifier {
	return &InsecureVerifier{parser: jwt.NewParser()}
}

func (v *InsecureVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return tokens.ClaimsToken(claims), nil
}
