package auth

import (
	"github.com/digibazaar/digibazaar-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	SellerID *uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued by the identity service.
// Seller tokens carry the seller id the settlement APIs are scoped to.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	SellerID *uuid.UUID      `json:"seller_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
