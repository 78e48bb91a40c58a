// Package auth resolves the calling patient or staff member from a bearer token
// and carries it through the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RolePatient = "patient"
	RoleDentist = "dentist"
	RoleAdmin   = "admin"
)

type User struct {
	ID    uuid.UUID
	Email string
	Name  string
	Role  string
}

// IsStaff reports whether the user works at the clinic.
func (u User) IsStaff() bool {
	return u.Role == RoleDentist || u.Role == RoleAdmin
}

type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type contextKey string

const userKey contextKey = "authUser"

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the authenticated user, if any.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

var errNoToken = errors.New("missing bearer token")

// Middleware rejects requests without a valid HMAC-signed token.
func Middleware(secret string) func(http.Handler) http.Handler {
	return middleware(secret, true)
}

// OptionalMiddleware lets guests through but still rejects malformed tokens.
func OptionalMiddleware(secret string) func(http.Handler) http.Handler {
	return middleware(secret, false)
}

func middleware(secret string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromRequest(r, secret)
			switch {
			case errors.Is(err, errNoToken) && !required:
				next.ServeHTTP(w, r)
				return
			case errors.Is(err, errNoToken):
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			case err != nil:
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func userFromRequest(r *http.Request, secret string) (User, error) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return User{}, errNoToken
	}
	if secret == "" {
		return User{}, errors.New("auth disabled")
	}
	return ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
}

// ParseToken validates tokenString and maps its claims onto a User.
func ParseToken(secret, tokenString string) (User, error) {
	claims := Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return User{}, errors.New("invalid token")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return User{}, errors.New("token subject is not a user id")
	}

	role := claims.Role
	if role == "" {
		role = RolePatient
	}
	return User{ID: id, Email: claims.Email, Name: claims.Name, Role: role}, nil
}

// IssueToken signs a token for u. Used by the simulator and tests.
func IssueToken(secret string, u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
