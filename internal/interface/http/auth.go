package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BEARER TOKENS
// ══════════════════════════════════════════════════════════════════════════════

// Claims carried by an access token. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and turns them into a
// shared.Principal.
type Authenticator struct {
	secret []byte
	issuer string
}

// NewAuthenticator creates an Authenticator. An empty issuer disables the issuer check.
func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for userID. The services never log users in; this is
// for tooling and tests.
func (a *Authenticator) Issue(userID string, role shared.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (shared.Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return shared.Principal{}, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	p := shared.Principal{UserID: claims.Subject, Role: shared.Role(claims.Role)}
	if p.UserID == "" || !p.Role.IsValid() {
		return shared.Principal{}, fmt.Errorf("%w: token has no subject or an unknown role", shared.ErrUnauthorized)
	}
	return p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

type principalKey struct{}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", shared.ErrUnauthorized))
			return
		}

		p, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// RequireRole lets through only principals with one of roles.
func RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				writeError(w, r, shared.ErrUnauthorized)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, shared.NewDomainError("auth", "RequireRole", shared.ErrForbidden, "role "+string(p.Role)+" may not call this endpoint"))
		})
	}
}

func principalFrom(ctx context.Context) (shared.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(shared.Principal)
	return p, ok
}

func principal(r *http.Request) (shared.Principal, error) {
	p, ok := principalFrom(r.Context())
	if !ok {
		return shared.Principal{}, errNoPrincipal
	}
	return p, nil
}

// staff reports whether p may act on any student's data.
func staff(p shared.Principal) bool {
	return p.Role == shared.RoleAdmin || p.Role == shared.RoleFaculty
}

// canRead allows students to read only their own data.
func canRead(p shared.Principal, studentID string) error {
	if staff(p) || p.UserID == studentID {
		return nil
	}
	return shared.NewDomainError("auth", "Read", shared.ErrForbidden, "students may only read their own records")
}

var errNoPrincipal = fmt.Errorf("%w: no principal in request context", shared.ErrUnauthorized)
