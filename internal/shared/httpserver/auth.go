package httpserver

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserIDKey holds the authenticated uuid.UUID in the request locals.
const UserIDKey = "user_id"

var ErrUnauthenticated = errors.New("authentication required")

// Claims are issued by the account service, only verified here.
type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and stores the user id in the request locals.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Parse validates token and returns the user it was issued to.
func (a *Authenticator) Parse(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return a.secret, nil }, opts...); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid uid claim", ErrUnauthenticated)
	}
	return id, nil
}

// Issue signs a token for userID. The server never logs users in, this
// serves tooling and tests.
func (a *Authenticator) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Require rejects requests without a valid token with 401.
func (a *Authenticator) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := a.authenticate(c)
		if err != nil {
			log.Warn("Rejected unauthenticated request",
				zap.String("path", c.Path()),
				zap.String("remote_addr", c.IP()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error(), "code": "UNAUTHORIZED"})
		}
		c.Locals(UserIDKey, id)
		return c.Next()
	}
}

// Optional sets the user when a valid token is present and lets anonymous requests through.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, err := a.authenticate(c); err == nil {
			c.Locals(UserIDKey, id)
		}
		return c.Next()
	}
}

// authenticate reads the bearer header, or the token query parameter browsers
// must use for websocket upgrades.
func (a *Authenticator) authenticate(c *fiber.Ctx) (uuid.UUID, error) {
	token := c.Query("token")
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		scheme, value, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return uuid.Nil, fmt.Errorf("%w: invalid authorization header format", ErrUnauthenticated)
		}
		token = value
	}
	if token == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	return a.Parse(token)
}

// UserID returns the authenticated user of the request.
func UserID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(UserIDKey).(uuid.UUID)
	return id, ok && id != uuid.Nil
}
