package policy

import "fmt"

// Action is an operation gated by the rule table.
type Action int

const (
	CreateRole Action = iota + 1
	UpdateRole
	DeleteRole
	CreateUser
	UpdateUser
	DeleteUser
	AssignRole
	ViewUser
)

var actionNames = map[Action]string{
	CreateRole: "create_role",
	UpdateRole: "update_role",
	DeleteRole: "delete_role",
	CreateUser: "create_user",
	UpdateUser: "update_user",
	DeleteUser: "delete_user",
	AssignRole: "assign_role",
	ViewUser:   "view_user",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Actions lists every gated action, in declaration order.
func Actions() []Action {
	return []Action{CreateRole, UpdateRole, DeleteRole, CreateUser, UpdateUser, DeleteUser, AssignRole, ViewUser}
}

// Subject identifies a user by id and role name. The target of role-only
// operations (CreateRole and friends) has an empty ID.
type Subject struct {
	ID   string
	Role string
}

// Request is a single authorization question.
type Request struct {
	Actor  Subject
	Action Action
	Target Subject
}

// Rule numbers, in precedence order.
const (
	RuleSuperAdminActor  = 1
	RuleSuperAdminTarget = 2
	RuleAdminTarget      = 3
	RuleStaffTarget      = 4
	RuleCustomTarget     = 5
	RuleSelfView         = 6
	RuleDefaultDeny      = 7
)

// Decision is the outcome of Evaluate. Rule is the rule that decided it.
type Decision struct {
	Allowed bool
	Rule    int
	Reason  string
}

// Evaluate runs the rule table. Rules are tried in order and the first one
// that decides wins; the tier rules (3 to 5) only ever grant, so a request
// they do not grant still reaches the self-view rule.
func Evaluate(req Request) Decision {
	actorTier := TierOf(req.Actor.Role)
	targetTier := TierOf(req.Target.Role)

	// 1. SuperAdmin may do anything except mutate the SuperAdmin role or its holders.
	if actorTier == TierSuperAdmin {
		if targetTier == TierSuperAdmin && req.Action != ViewUser {
			return deny(RuleSuperAdminActor, "the SuperAdmin role can only be changed through bootstrap")
		}
		return allow(RuleSuperAdminActor, "actor is SuperAdmin")
	}

	// 2. Nobody else touches SuperAdmin.
	if targetTier == TierSuperAdmin {
		return deny(RuleSuperAdminTarget, "SuperAdmin users and role are protected")
	}

	if req.Target.Role != "" {
		switch targetTier {
		case TierAdmin:
			// 3. Admin-tier targets are SuperAdmin-only, already granted by rule 1.
		case TierStaff:
			// 4.
			if actorTier == TierAdmin {
				return allow(RuleStaffTarget, "Admin manages staff roles")
			}
		case TierCustom:
			// 5. Custom roles are SuperAdmin-only, already granted by rule 1.
		}
	}

	// 6.
	if req.Action == ViewUser && req.Actor.ID != "" && req.Actor.ID == req.Target.ID {
		return allow(RuleSelfView, "actor is viewing self")
	}

	// 7.
	return deny(RuleDefaultDeny, fmt.Sprintf("role %q may not %s on role %q", req.Actor.Role, req.Action, req.Target.Role))
}

// CanPerform is the role-only form of Evaluate.
func CanPerform(actorRole string, action Action, targetRole string) bool {
	return Evaluate(Request{
		Actor:  Subject{Role: actorRole},
		Action: action,
		Target: Subject{Role: targetRole},
	}).Allowed
}

func allow(rule int, reason string) Decision { return Decision{Allowed: true, Rule: rule, Reason: reason} }
func deny(rule int, reason string) Decision  { return Decision{Allowed: false, Rule: rule, Reason: reason} }
