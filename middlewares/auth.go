package middlewares

import (
	"errors"
	"strings"
	"time"

	"invoicing-backend/database"
	"invoicing-backend/models"
	"invoicing-backend/services"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/log"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	sessionKey   = "session"
)

// Claims is the identity provider's session token payload.
type Claims struct {
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
	jwt.RegisteredClaims
}

// Session is the authenticated caller of one request. Business is nil until onboarding.
type Session struct {
	User     *models.User
	Business *models.Business
}

func (s *Session) BusinessID() string {
	if s == nil || s.Business == nil {
		return ""
	}
	return s.Business.Id
}

// GetSession returns the request's session, or nil on unauthenticated routes.
func GetSession(c *fiber.Ctx) *Session {
	s, _ := c.Locals(sessionKey).(*Session)
	return s
}

// Authenticate validates a Bearer token (HS256 only), mirrors the user and attaches a Session.
func Authenticate(secret []byte, issuer string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return fiber.NewError(fiber.StatusInternalServerError, "server auth not configured")
		}

		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return fiber.NewError(fiber.StatusUnauthorized, "missing/invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
		}

		parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		var claims Claims
		token, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		if strings.TrimSpace(claims.Subject) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token missing subject")
		}
		if issuer != "" && !claims.VerifyIssuer(issuer, true) {
			return fiber.NewError(fiber.StatusUnauthorized, "unexpected token issuer")
		}

		db := database.DB.WithContext(c.UserContext())
		user, err := services.EnsureUser(c.UserContext(), db, services.Identity{
			ExternalID: claims.Subject,
			Email:      claims.Email,
			FirstName:  claims.GivenName,
			LastName:   claims.FamilyName,
			ImageURL:   claims.Picture,
		})
		if err != nil {
			log.Error().Err(err).Str("subject", claims.Subject).Msg("user upsert failed")
			return fiber.NewError(fiber.StatusInternalServerError, "could not load user")
		}

		session := &Session{User: user}
		business, err := services.BusinessOf(c.UserContext(), db, user.Id)
		switch {
		case err == nil:
			session.Business = business
		case !errors.Is(err, services.ErrNotFound):
			return err
		}

		c.Locals(sessionKey, session)
		c.Locals("userID", user.Id)
		return c.Next()
	}
}

// RequireBusiness rejects callers that have not created their business yet.
func RequireBusiness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetSession(c).BusinessID() == "" {
			return fiber.NewError(fiber.StatusForbidden, "create a business profile first")
		}
		return c.Next()
	}
}

// GenerateJWT signs an identity token the way the identity provider does. Used by local
// tooling and tests.
func GenerateJWT(secret []byte, id services.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email:      id.Email,
		GivenName:  id.FirstName,
		FamilyName: id.LastName,
		Picture:    id.ImageURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ExternalID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
