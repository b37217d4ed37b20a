package auth

import (
	"context"
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"presence/backend/foundation/web"
)

// Roles recognised across the service. Token issuance happens upstream,
// this package only validates what arrives.
const (
	RoleEmployee  = "EMPLOYEE"
	RoleAdmin     = "ADMIN"
	RoleDashboard = "DASHBOARD"
)

type ctxKey int

// Key is used to store/retrieve a Claims value from a context.Context.
const Key ctxKey = 1

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	UserId         int    `json:"user_id"`
	OrganizationID int    `json:"organization_id"`
	Role           string `json:"role"`
}

// Authorized returns true if the claims hold one of the provided roles.
func (c Claims) Authorized(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// Auth is used to authenticate clients.
type Auth struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuth(secret string) *Auth {
	return &Auth{
		secret: []byte(secret),
		parser: &jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}},
	}
}

// ValidateToken recreates the Claims that were used to generate a token.
// It verifies that the token was signed using our key.
func (a *Auth) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}

	token, err := a.parser.ParseWithClaims(tokenStr, &claims, keyFunc)
	if err != nil {
		return Claims{}, errors.Wrap(err, "parsing token")
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	return claims, nil
}

// GetClaims pulls the authenticated claims from the context. Handlers behind
// the Authenticate middleware can rely on them being present.
func GetClaims(ctx context.Context) (Claims, error) {
	claims, ok := ctx.Value(Key).(Claims)
	if !ok {
		return Claims{}, web.NewRequestError(errors.New("claims missing from context"), http.StatusUnauthorized)
	}
	return claims, nil
}
