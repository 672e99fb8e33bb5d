package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the standard claims carried by a session token.
// The subject is the account address and the JWT ID is the session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}
