package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const subjectLocal = "auth_subject"

// Verifier checks bearer tokens issued by the identity provider. A token
// that verifies means the caller is signed in; nothing else is derived
// from it beyond the subject used for logging.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a Verifier for HS256 tokens. An empty issuer accepts
// any issuer.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify validates a token and returns its subject.
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}

	sub, _ := token.Claims.GetSubject()
	return sub, nil
}

// RequireSignedIn rejects requests without a verifying bearer token.
// A nil verifier lets every request through.
func RequireSignedIn(v *Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if v == nil {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return errUnauthorized(c, "sign in required")
		}

		sub, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			LoggerFromCtx(c.UserContext()).Debug("token rejected", "error", err)
			return errUnauthorized(c, "invalid or expired token")
		}
		c.Locals(subjectLocal, sub)
		return c.Next()
	}
}
