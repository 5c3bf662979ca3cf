// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package server

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/danielgtaylor/huma/v2"

	"github.com/parley-dev/parley/internal/store"
	parleyerr "github.com/parley-dev/parley/pkg/errors"
)

const minPasswordLength = 8

type tokenInput struct {
	Body struct {
		Username string `json:"username" minLength:"1"`
		Password string `json:"password" minLength:"1"`
	}
}

type tokenOutput struct {
	Body struct {
		Access  string `json:"access" doc:"Access token"`
		Refresh string `json:"refresh" doc:"Refresh token"`
	}
}

type refreshInput struct {
	Body struct {
		Refresh string `json:"refresh" minLength:"1"`
	}
}

type refreshOutput struct {
	Body struct {
		Access string `json:"access"`
	}
}

type registerInput struct {
	Body struct {
		Email     string `json:"email" format:"email" maxLength:"254"`
		Username  string `json:"username" minLength:"1" maxLength:"150"`
		Password  string `json:"password" minLength:"1"`
		Password2 string `json:"password2" minLength:"1"`
	}
}

type userOutput struct {
	Body userBody
}

type updateMeInput struct {
	Body struct {
		Email    string `json:"email,omitempty" format:"email" maxLength:"254"`
		Username string `json:"username,omitempty" maxLength:"150"`
	}
}

type logoutInput struct {
	Body struct {
		Refresh string `json:"refresh" minLength:"1"`
	}
}

func (s *Server) handleToken(ctx context.Context, in *tokenInput) (*tokenOutput, error) {
	u, err := s.services.store.Users().GetByUsername(ctx, strings.TrimSpace(in.Body.Username))
	if err != nil {
		if parleyerr.IsNotFound(err) {
			return nil, huma.Error401Unauthorized(detailBadLogin)
		}
		return nil, apiError(err, "Login failed")
	}
	if !checkPassword(u.PasswordHash, in.Body.Password) {
		slog.Info("login rejected", "username", u.Username)
		return nil, huma.Error401Unauthorized(detailBadLogin)
	}

	pair, err := s.services.tokens.Issue(u)
	if err != nil {
		return nil, apiError(err, "Login failed")
	}
	slog.Info("login", "user_id", u.ID)

	out := &tokenOutput{}
	out.Body.Access = pair.Access
	out.Body.Refresh = pair.Refresh
	return out, nil
}

func (s *Server) handleRefresh(ctx context.Context, in *refreshInput) (*refreshOutput, error) {
	claims, err := s.services.tokens.Parse(in.Body.Refresh, TokenTypeRefresh)
	if err != nil {
		return nil, huma.Error401Unauthorized(detailBadRefresh)
	}
	revoked, err := s.services.store.Revocations().IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apiError(err, "Token refresh failed")
	}
	if revoked {
		return nil, huma.Error401Unauthorized(detailBadRefresh)
	}
	// The account may have been removed since the refresh token was issued.
	if _, err := s.services.store.Users().Get(ctx, claims.UserID); err != nil {
		if parleyerr.IsNotFound(err) {
			return nil, huma.Error401Unauthorized(detailBadRefresh)
		}
		return nil, apiError(err, "Token refresh failed")
	}

	access, err := s.services.tokens.Access(claims)
	if err != nil {
		return nil, apiError(err, "Token refresh failed")
	}
	out := &refreshOutput{}
	out.Body.Access = access
	return out, nil
}

func (s *Server) handleMe(ctx context.Context, _ *struct{}) (*userOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	u, err := s.services.store.Users().Get(ctx, p.UserID)
	if err != nil {
		if parleyerr.IsNotFound(err) {
			return nil, huma.Error401Unauthorized("User not found")
		}
		return nil, apiError(err, "Failed to load user")
	}
	return &userOutput{Body: toUserBody(u)}, nil
}

func (s *Server) handleRegister(ctx context.Context, in *registerInput) (*userOutput, error) {
	b := in.Body
	if b.Password != b.Password2 {
		return nil, badRequest("Password fields didn't match.")
	}
	if utf8.RuneCountInString(b.Password) < minPasswordLength {
		return nil, badRequest("This password is too short. It must contain at least 8 characters.")
	}

	hash, err := hashPassword(b.Password)
	if err != nil {
		return nil, apiError(err, "Registration failed")
	}

	u := &store.User{
		Email:        strings.TrimSpace(b.Email),
		Username:     strings.TrimSpace(b.Username),
		PasswordHash: hash,
	}
	if err := s.services.store.Users().Create(ctx, u); err != nil {
		return nil, apiError(err, "Registration failed")
	}
	slog.Info("user registered", "user_id", u.ID, "username", u.Username)
	return &userOutput{Body: toUserBody(u)}, nil
}

// handleUpdateMe changes the fields present in the body. Tokens issued
// before the change keep the old username in their claims until they are
// refreshed.
func (s *Server) handleUpdateMe(ctx context.Context, in *updateMeInput) (*userOutput, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	u, err := s.services.store.Users().Get(ctx, p.UserID)
	if err != nil {
		if parleyerr.IsNotFound(err) {
			return nil, huma.Error401Unauthorized("User not found")
		}
		return nil, apiError(err, "Failed to load user")
	}

	if email := strings.TrimSpace(in.Body.Email); email != "" {
		u.Email = email
	}
	if username := strings.TrimSpace(in.Body.Username); username != "" {
		u.Username = username
	}
	if err := s.services.store.Users().Update(ctx, u); err != nil {
		return nil, apiError(err, "Failed to update user")
	}
	slog.Info("user updated", "user_id", u.ID, "username", u.Username)
	return &userOutput{Body: toUserBody(u)}, nil
}

// handleLogout revokes the caller's refresh token until it would have
// expired anyway. Access tokens stay valid for their short lifetime.
func (s *Server) handleLogout(ctx context.Context, in *logoutInput) (*struct{}, error) {
	p, err := requirePrincipal(ctx)
	if err != nil {
		return nil, apiError(err, detailNoCredentials)
	}
	claims, err := s.services.tokens.Parse(in.Body.Refresh, TokenTypeRefresh)
	if err != nil || claims.UserID != p.UserID {
		return nil, badRequest(detailBadRefresh)
	}
	if err := s.services.store.Revocations().Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, apiError(err, "Logout failed")
	}
	slog.Info("logout", "user_id", p.UserID)
	return nil, nil
}
