// Package access evaluates authorization rules for HTTP resources.
//
// A Rule answers two questions: may this actor perform the action on the
// resource collection at all (request level), and may it perform the action
// on this particular object (object level). Rules are stateless values and
// compose with AnyOf and AllOf.
package access

import (
	"errors"
	"net/http"

	"github.com/Lapkipomoshi/help-paw-backend/internal/domain"
)

var (
	// ErrUnauthenticated means the rule denied an anonymous actor.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the rule denied an authenticated actor.
	ErrForbidden = errors.New("forbidden")
)

// Actor is the authenticated caller. A nil *Actor is anonymous.
type Actor struct {
	ID   string
	Role domain.Role
}

// Authenticated reports whether a is a known user.
func (a *Actor) Authenticated() bool { return a != nil && a.ID != "" }

// Is reports whether a is the user with the given id.
func (a *Actor) Is(id string) bool { return a.Authenticated() && id != "" && a.ID == id }

// Action is the operation class of a request.
type Action string

const (
	Read   Action = "read"
	Create Action = "create"
	Update Action = "update"
	Delete Action = "delete"
)

// Safe reports whether the action does not modify state.
func (a Action) Safe() bool { return a == Read }

// ActionFromMethod maps an HTTP method onto an Action.
func ActionFromMethod(method string) Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return Read
	case http.MethodPost:
		return Create
	case http.MethodPut, http.MethodPatch:
		return Update
	case http.MethodDelete:
		return Delete
	default:
		return Update
	}
}

// Owned is implemented by objects that record an owner.
type Owned interface {
	OwnedBy() string
}

// Authored is implemented by objects that record an author.
type Authored interface {
	AuthoredBy() string
}

// ShelterScoped is implemented by objects that belong to a shelter whose
// owner is known.
type ShelterScoped interface {
	ShelterOwnerID() string
}

// Rule is a composable authorization predicate. The zero Rule denies
// everything.
type Rule struct {
	name    string
	request func(a *Actor, act Action) bool
	object  func(a *Actor, act Action, obj any) bool
}

// Name is a short label used in logs.
func (r Rule) Name() string { return r.name }

// AllowRequest evaluates the request-level predicate.
func (r Rule) AllowRequest(a *Actor, act Action) bool {
	if r.request == nil {
		return false
	}
	return r.request(a, act)
}

// AllowObject evaluates the object-level predicate. Rules without an object
// predicate fall back to the request-level answer.
func (r Rule) AllowObject(a *Actor, act Action, obj any) bool {
	if r.object == nil {
		return r.AllowRequest(a, act)
	}
	return r.object(a, act, obj)
}

func hasRole(a *Actor, roles []domain.Role) bool {
	if !a.Authenticated() {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// ReadOpenWriteRoleGated allows reads to anyone and writes only to
// authenticated actors holding one of roles.
func ReadOpenWriteRoleGated(roles ...domain.Role) Rule {
	return Rule{
		name: "read_open_write_role_gated",
		request: func(a *Actor, act Action) bool {
			return act.Safe() || hasRole(a, roles)
		},
	}
}

// OwnerOrRoleGated is ReadOpenWriteRoleGated that additionally lets the
// recorded owner write to its own object. The request-level check admits
// any authenticated writer so the object check can run.
func OwnerOrRoleGated(roles ...domain.Role) Rule {
	return Rule{
		name: "owner_or_role_gated",
		request: func(a *Actor, act Action) bool {
			return act.Safe() || a.Authenticated()
		},
		object: func(a *Actor, act Action, obj any) bool {
			if act.Safe() || hasRole(a, roles) {
				return true
			}
			o, ok := obj.(Owned)
			return ok && a.Is(o.OwnedBy())
		},
	}
}

// AuthenticatedPostOnly admits authenticated actors for create only.
var AuthenticatedPostOnly = Rule{
	name: "authenticated_post_only",
	request: func(a *Actor, act Action) bool {
		return act == Create && a.Authenticated()
	},
}

// IsAuthor admits authenticated actors; object-level it requires the actor
// to be the object's author.
var IsAuthor = Rule{
	name:    "is_author",
	request: func(a *Actor, _ Action) bool { return a.Authenticated() },
	object: func(a *Actor, _ Action, obj any) bool {
		o, ok := obj.(Authored)
		return ok && a.Is(o.AuthoredBy())
	},
}

// IsShelterOwner admits actors with the shelter owner role; object-level it
// also requires the actor to own the object's shelter.
var IsShelterOwner = Rule{
	name:    "is_shelter_owner",
	request: func(a *Actor, _ Action) bool { return a.Authenticated() && a.Role.IsShelterOwner() },
	object: func(a *Actor, _ Action, obj any) bool {
		if !a.Authenticated() || !a.Role.IsShelterOwner() {
			return false
		}
		switch o := obj.(type) {
		case ShelterScoped:
			return a.Is(o.ShelterOwnerID())
		case Owned:
			return a.Is(o.OwnedBy())
		default:
			return false
		}
	},
}

// Authenticated admits any logged-in actor.
var Authenticated = Rule{
	name:    "authenticated",
	request: func(a *Actor, _ Action) bool { return a.Authenticated() },
}

// StaffOnly admits admins and moderators for every action.
var StaffOnly = Rule{
	name:    "staff_only",
	request: func(a *Actor, _ Action) bool { return a.Authenticated() && a.Role.IsStaff() },
}

// AllowAll admits everyone, including anonymous actors.
var AllowAll = Rule{
	name:    "allow_all",
	request: func(*Actor, Action) bool { return true },
}

// AnyOf admits when at least one rule admits.
func AnyOf(rules ...Rule) Rule {
	return Rule{
		name: "any_of",
		request: func(a *Actor, act Action) bool {
			for _, r := range rules {
				if r.AllowRequest(a, act) {
					return true
				}
			}
			return false
		},
		object: func(a *Actor, act Action, obj any) bool {
			for _, r := range rules {
				if r.AllowRequest(a, act) && r.AllowObject(a, act, obj) {
					return true
				}
			}
			return false
		},
	}
}

// AllOf admits when every rule admits. An empty AllOf denies.
func AllOf(rules ...Rule) Rule {
	return Rule{
		name: "all_of",
		request: func(a *Actor, act Action) bool {
			if len(rules) == 0 {
				return false
			}
			for _, r := range rules {
				if !r.AllowRequest(a, act) {
					return false
				}
			}
			return true
		},
		object: func(a *Actor, act Action, obj any) bool {
			if len(rules) == 0 {
				return false
			}
			for _, r := range rules {
				if !r.AllowObject(a, act, obj) {
					return false
				}
			}
			return true
		},
	}
}

// Check evaluates the request-level predicate of rule.
func Check(rule Rule, a *Actor, act Action) error {
	if rule.AllowRequest(a, act) {
		return nil
	}
	return denial(a)
}

// CheckObject evaluates both predicates of rule against obj.
func CheckObject(rule Rule, a *Actor, act Action, obj any) error {
	if rule.AllowRequest(a, act) && rule.AllowObject(a, act, obj) {
		return nil
	}
	return denial(a)
}

func denial(a *Actor) error {
	if !a.Authenticated() {
		return ErrUnauthenticated
	}
	return ErrForbidden
}
