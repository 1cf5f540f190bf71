package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// TokenResult is what a successful login hands back.
type TokenResult struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64 // seconds
	User        domain.UserWithRole
}

type AuthService struct {
	Store       store.Store
	Credentials Credentials
	Signer      jwtx.Signer
	Verifier    jwtx.Verifier
	Issuer      string
	TTL         time.Duration
}

const invalidCredentials = "Incorrect email or password"

func (s *AuthService) ttl() time.Duration {
	if s.TTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return s.TTL
}

// Login exchanges an email and password for a signed access token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (TokenResult, error) {
	log := slogx.FromContext(ctx)
	email = strings.TrimSpace(email)

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn comparable time so unknown emails are not cheaper to probe.
		_, _ = s.Credentials.Hash(password)
		log.Info("login failed", slog.String("reason", "unknown_email"))
		return TokenResult{}, unauthorized(invalidCredentials)
	}
	if err != nil {
		return TokenResult{}, internal(err)
	}

	if err := s.Credentials.Verify(password, u.PasswordHash); err != nil {
		log.Info("login failed", slog.String("reason", "bad_password"), slog.String("user_id", u.ID))
		return TokenResult{}, unauthorized(invalidCredentials)
	}

	if s.Credentials.NeedsRehash(u.PasswordHash) {
		if hash, err := s.Credentials.Hash(password); err == nil {
			if err := s.Store.Users().UpdatePasswordHash(ctx, u.ID, hash); err != nil {
				log.Warn("password rehash failed", slog.String("user_id", u.ID), slog.Any("err", err))
			}
		}
	}

	full, err := s.Store.Users().GetUserWithRole(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		return TokenResult{}, unauthorized(invalidCredentials)
	}
	if err != nil {
		return TokenResult{}, internal(err)
	}

	ttl := s.ttl()
	claims := jwtx.NewAccessClaims(full.ID, full.Email, full.Role.Name, s.Issuer, ttl, time.Now())
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return TokenResult{}, internal(err)
	}

	log.Info("login succeeded", slog.String("user_id", full.ID), slog.String("role", full.Role.Name))
	return TokenResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl / time.Second),
		User:        full,
	}, nil
}

// Authenticate resolves a bearer token to the current actor. The user and
// role are reloaded on every call so role changes and deletions take effect
// on the next request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Actor, error) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		slogx.FromContext(ctx).Debug("token rejected", slog.Any("err", err))
		return domain.Actor{}, unauthorized("Could not validate credentials")
	}

	u, err := s.Store.Users().GetUserWithRole(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Actor{}, unauthorized("Could not validate credentials")
	}
	if err != nil {
		return domain.Actor{}, internal(err)
	}
	return domain.Actor{ID: u.ID, Email: u.Email, RoleName: u.Role.Name}, nil
}

// Me returns the authenticated user with its role.
func (s *AuthService) Me(ctx context.Context, actor domain.Actor) (domain.UserWithRole, error) {
	u, err := s.Store.Users().GetUserWithRole(ctx, actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserWithRole{}, unauthorized("Could not validate credentials")
	}
	if err != nil {
		return domain.UserWithRole{}, internal(err)
	}
	return u, nil
}
