// Package auth guards the control endpoints with HS256 bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator may pause and stop workers.
const RoleOperator = "operator"

var (
	ErrNoToken   = errors.New("auth: missing bearer token")
	ErrForbidden = errors.New("auth: role not allowed")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Principal struct {
	Subject string
	Role    string
}

type ctxKey struct{}

// Verifier validates tokens signed with a shared secret. A Verifier with an
// empty secret accepts every request as an operator.
type Verifier struct {
	Secret []byte
	Issuer string
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration
}

func (v *Verifier) Enabled() bool { return v != nil && len(v.Secret) > 0 }

func (v *Verifier) Verify(token string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.Leeway),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, err
	}
	role := strings.ToLower(claims.Role)
	if role == "" {
		role = "viewer"
	}
	return Principal{Subject: claims.Subject, Role: role}, nil
}

// Sign issues a token for subject valid for ttl.
func (v *Verifier) Sign(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return tok.SignedString(v.Secret)
}

// Require rejects requests whose token does not carry role.
func (v *Verifier) Require(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Subject: "anonymous", Role: role})))
			return
		}
		p, err := v.fromRequest(r)
		switch {
		case err != nil:
			w.Header().Set("WWW-Authenticate", `Bearer realm="planner"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		case p.Role != role:
			http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (v *Verifier) fromRequest(r *http.Request) (Principal, error) {
	h := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || token == "" {
		return Principal{}, ErrNoToken
	}
	return v.Verify(strings.TrimSpace(token))
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
