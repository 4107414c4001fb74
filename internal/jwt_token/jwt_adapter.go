package jwttoken

import (
	id "zenid/pkg/domain"
	authmw "zenid/pkg/platform/middleware/auth"
)

// ToMiddlewareClaims converts service claims into the middleware view. A
// non-UUID user_id claim is treated as absent rather than an error so service
// principals keep working.
func ToMiddlewareClaims(claims *Claims) *authmw.JWTClaims {
	out := &authmw.JWTClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
		JTI:     claims.ID,
	}
	if userID, err := id.ParseUserID(claims.UserID); err == nil {
		out.UserID = userID
	}
	return out
}

// JWTServiceAdapter adapts JWTService to the middleware's JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}
