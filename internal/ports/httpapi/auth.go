package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bataille/internal/app"

	"github.com/form3tech-oss/jwt-go"
)

type contextKey string

const userContextKey = contextKey("user")

const tokenIssuer = "bataille"

// Authenticator issues and verifies HS256 bearer tokens whose subject is the user id.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for userID.
func (a *Authenticator) Issue(userID string) (string, error) {
	if userID == "" {
		return "", app.ErrUnauthenticated
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(a.ttl).Unix(),
	})
	return token.SignedString(a.secret)
}

// Verify returns the user id carried by a valid token.
func (a *Authenticator) Verify(tokenString string) (string, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", app.ErrUnauthenticated)
	}
	if claims.Issuer != tokenIssuer || claims.Subject == "" {
		return "", app.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// Middleware authenticates the request from the Authorization header, or from the
// token query parameter for websocket clients that cannot set headers.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			writeError(w, app.ErrUnauthenticated)
			return
		}
		userID, err := a.Verify(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, userID)))
	})
}

func userFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey).(string)
	return userID
}
