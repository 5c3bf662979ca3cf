// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	detailNoCredentials = "Authentication credentials were not provided."
	detailInvalidToken  = "Given token not valid for any token type"
	detailBadLogin      = "No active account found with the given credentials"
	detailBadRefresh    = "Token is invalid or expired"
)

// Claims are the JWT claims issued by the server.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is an access and refresh token issued together.
type TokenPair struct {
	Access  string
	Refresh string
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer returns an issuer. The secret must be non-empty and both
// lifetimes positive.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, parleyerr.New(parleyerr.CodeServerConfigInvalid, "jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, parleyerr.Errorf(parleyerr.CodeServerConfigInvalid,
			"token lifetimes must be positive (access=%s, refresh=%s)", accessTTL, refreshTTL)
	}
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// SetNowFunc overrides the time source (for testing).
func (t *TokenIssuer) SetNowFunc(fn func() time.Time) { t.now = fn }

// Issue signs a fresh access/refresh pair for u.
func (t *TokenIssuer) Issue(u *store.User) (TokenPair, error) {
	access, err := t.sign(u, TokenTypeAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(u, TokenTypeRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// Access signs an access token for the user a refresh token was issued to.
func (t *TokenIssuer) Access(c *Claims) (string, error) {
	return t.sign(&store.User{ID: c.UserID, Email: c.Email, Username: c.Username}, TokenTypeAccess, t.accessTTL)
}

func (t *TokenIssuer) sign(u *store.User, typ string, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Username:  u.Username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", parleyerr.Wrap(err, parleyerr.CodeServerInternalFailure, "signing token")
	}
	return signed, nil
}

// Parse verifies token and checks that it is of type want.
func (t *TokenIssuer) Parse(token, want string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, parleyerr.Wrap(err, parleyerr.CodeServerAuthUnauthorized, "verifying token")
	}
	if claims.TokenType != want {
		return nil, parleyerr.Errorf(parleyerr.CodeServerAuthUnauthorized,
			"token type %q, want %q", claims.TokenType, want)
	}
	return claims, nil
}

// hashPassword and checkPassword wrap bcrypt.
func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", parleyerr.Wrap(err, parleyerr.CodeServerInternalFailure, "hashing password")
	}
	return string(h), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Principal is the caller authenticated by an access token.
type Principal struct {
	UserID   int64
	Email    string
	Username string
}

type contextKey int

const (
	principalKey contextKey = iota
	authErrorKey
)

// authMiddleware verifies a bearer access token when one is present. It
// never rejects a request itself: handlers that need a caller ask for one
// with requirePrincipal, which reports why none is available.
func authMiddleware(tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				ctx = context.WithValue(ctx, authErrorKey, detailInvalidToken)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(raw), TokenTypeAccess)
			if err != nil {
				slog.Debug("rejecting bearer token", "path", r.URL.Path, "error", err)
				ctx = context.WithValue(ctx, authErrorKey, detailInvalidToken)
			} else {
				ctx = context.WithValue(ctx, principalKey, &Principal{
					UserID:   claims.UserID,
					Email:    claims.Email,
					Username: claims.Username,
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requirePrincipal returns the authenticated caller or a 401 error.
func requirePrincipal(ctx context.Context) (*Principal, error) {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p, nil
	}
	detail := detailNoCredentials
	if d, ok := ctx.Value(authErrorKey).(string); ok {
		detail = d
	}
	return nil, parleyerr.New(parleyerr.CodeServerAuthUnauthorized, "authentication required",
		parleyerr.FieldReason(detail))
}
