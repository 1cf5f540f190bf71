package http

import (
	"context"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

type actorKey struct{}

// authenticator resolves bearer tokens through the auth service and stores
// the actor on the request context.
type authenticator struct {
	auth *service.AuthService
}

func (a authenticator) Authenticate(ctx context.Context, token string) (context.Context, error) {
	actor, err := a.auth.Authenticate(ctx, token)
	if err != nil {
		return ctx, err
	}
	ctx = context.WithValue(ctx, actorKey{}, actor)
	return httpx.WithUserID(ctx, actor.ID), nil
}

// actorFrom returns the authenticated actor. Only valid behind AuthnMiddleware.
func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}
