package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// Имена JWT claims
const (
	jwtClaimUserID   = "user_id"
	jwtClaimTenantID = "tenant_id"
)

// WithClaims returns ctx carrying claims the way Authenticate stores them.
func WithClaims(ctx context.Context, claims jwt.MapClaims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

func GetUserIDFromContext(ctx context.Context) (string, error) {
	return stringClaim(ctx, jwtClaimUserID)
}

// GetTenantIDFromContext returns the club the caller belongs to.
func GetTenantIDFromContext(ctx context.Context) (string, error) {
	return stringClaim(ctx, jwtClaimTenantID)
}

func stringClaim(ctx context.Context, name string) (string, error) {
	claims, ok := ctx.Value(userContextKey).(jwt.MapClaims)
	if !ok {
		return "", errors.New("user claims not found in context or invalid type")
	}
	value, ok := claims[name]
	if !ok {
		return "", fmt.Errorf("missing '%s' claim in token", name)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("invalid '%s' claim: expected non-empty string, got %T", name, value)
	}
	return s, nil
}
