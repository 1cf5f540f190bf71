package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/policy"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// Credentials hashes and verifies passwords. Verify returns nil on a match.
type Credentials interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
	NeedsRehash(encoded string) bool
}

func subjectOf(a domain.Actor) policy.Subject {
	return policy.Subject{ID: a.ID, Role: a.RoleName}
}

// authorize consults the rule table and turns a deny into Forbidden.
func authorize(ctx context.Context, actor domain.Actor, action policy.Action, target policy.Subject) error {
	d := policy.Evaluate(policy.Request{Actor: subjectOf(actor), Action: action, Target: target})
	if d.Allowed {
		return nil
	}
	slogx.FromContext(ctx).Warn("authorization denied",
		slog.String("actor_id", actor.ID),
		slog.String("actor_role", actor.RoleName),
		slog.String("action", action.String()),
		slog.String("target_id", target.ID),
		slog.String("target_role", target.Role),
		slog.Int("rule", d.Rule),
	)
	return forbidden("%s", d.Reason)
}
