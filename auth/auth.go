package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

const (
	RoleAdmin = "admin"
	RoleSede  = "sede"
)

var (
	ErrUnauthorized = errors.New("token inválido o ausente")
	ErrForbidden    = errors.New("se requiere rol admin")
)

type ctxKey string

const ctxKeyClaims ctxKey = "auth_claims"

// Claims are carried by the dashboard bearer tokens. Local is only set for sede tokens.
type Claims struct {
	Role  string `json:"role"`
	Local string `json:"local,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Signer issues and checks HS256 tokens. A Signer without a secret disables auth.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) Enabled() bool {
	return len(s.secret) > 0
}

func (s *Signer) Issue(subject string, role string, local string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("Issue: auth.jwt_secret no configurado")
	}
	if role != RoleAdmin && role != RoleSede {
		return "", fmt.Errorf("Issue: rol desconocido %q", role)
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:  role,
		Local: local,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})

	return token.SignedString(s.secret)
}

func (s *Signer) Parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrUnauthorized
	}

	return claims, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*Claims)
	return claims, ok
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// Middleware reads an optional bearer token into the request context. A present but
// invalid token is rejected with onError.
func (s *Signer) Middleware(onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r.Header.Get("Authorization"))
			if !s.Enabled() || raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := s.Parse(raw)
			if err != nil {
				log.Debugf("Token rechazado: %v", err)
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAdmin guards admin routes. It lets everything through when auth is disabled.
func (s *Signer) RequireAdmin(onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := ClaimsFromContext(r.Context())
			switch {
			case !ok:
				onError(w, ErrUnauthorized)
			case !claims.IsAdmin():
				onError(w, ErrForbidden)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
