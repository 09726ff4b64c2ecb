package grant

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveGrant    = errors.New("grant: no active grant")
	ErrPermissionDenied = errors.New("grant: permission denied")
	ErrUnknownModule    = errors.New("grant: unknown module")
	ErrUnknownAction    = errors.New("grant: unknown action")
)

// Module enumerates the resource modules capabilities apply to.
type Module string

const (
	ModuleCompanies Module = "companies"
)

// ParseModule validates a raw module name against the known enumeration.
func ParseModule(raw string) (Module, error) {
	switch Module(raw) {
	case ModuleCompanies:
		return Module(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownModule, raw)
}

func (m Module) String() string { return string(m) }

// Action enumerates the capabilities a grant row carries.
type Action string

const (
	ActionAccess Action = "access"
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// ParseAction validates a raw action name against the known enumeration.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionAccess, ActionRead, ActionCreate, ActionUpdate, ActionRemove:
		return Action(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, raw)
}

func (a Action) String() string { return string(a) }

// Scope distinguishes the two grant tiers.
type Scope string

const (
	ScopeOrganization Scope = "organization"
	ScopeUser         Scope = "user"
)

// Grant is one active capability row for a module.
type Grant struct {
	Access bool
	Read   bool
	Create bool
	Update bool
	Remove bool
}

func (g Grant) allows(action Action) bool {
	switch action {
	case ActionAccess:
		return g.Access
	case ActionRead:
		return g.Read
	case ActionCreate:
		return g.Create
	case ActionUpdate:
		return g.Update
	case ActionRemove:
		return g.Remove
	}
	return false
}

// Decision holds the grants loaded for one module and one principal. It is
// built fresh per request; grants can change between requests.
type Decision struct {
	Module Module
	Org    Grant
	User   Grant
}

// PermissionError identifies which scope rejected an action.
type PermissionError struct {
	Scope  Scope
	Action Action
	Module Module
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("grant: %s scope denies %s on %s", e.Scope, e.Action, e.Module)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// Can checks a single scope for the action.
func (d Decision) Can(scope Scope, action Action) error {
	g := d.Org
	if scope == ScopeUser {
		g = d.User
	}
	if !g.allows(action) {
		return &PermissionError{Scope: scope, Action: action, Module: d.Module}
	}
	return nil
}

// Allow checks both scopes. The effective capability is the AND of the
// organization and user grants; the organization ceiling is checked first so
// the denial names the outermost rejecting scope.
func (d Decision) Allow(action Action) error {
	if err := d.Can(ScopeOrganization, action); err != nil {
		return err
	}
	return d.Can(ScopeUser, action)
}
