package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Resolver loads the active organization and user grants for a module.
type Resolver struct {
	db *sql.DB
}

// NewResolver constructs a Resolver.
func NewResolver(db *sql.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("grant: database handle is required")
	}
	return &Resolver{db: db}, nil
}

// Resolve fetches both grant tiers. Exactly one active row per scope is
// expected; an absent row in either scope fails with ErrNoActiveGrant.
// Results are never cached across requests.
func (r *Resolver) Resolve(ctx context.Context, module Module, userID int64) (Decision, error) {
	org, err := r.loadOrg(ctx, module)
	if err != nil {
		return Decision{}, err
	}
	user, err := r.loadUser(ctx, module, userID)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Module: module, Org: org, User: user}, nil
}

func (r *Resolver) loadOrg(ctx context.Context, module Module) (Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		select can_access, can_read, can_create, can_update, can_remove
		from org_grants
		where module = $1 and is_active
		order by id desc
		limit 1
	`, module.String())
	return scanGrant(row, ScopeOrganization, module)
}

func (r *Resolver) loadUser(ctx context.Context, module Module, userID int64) (Grant, error) {
	row := r.db.QueryRowContext(ctx, `
		select can_access, can_read, can_create, can_update, can_remove
		from user_grants
		where module = $1 and user_id = $2 and is_active
		order by id desc
		limit 1
	`, module.String(), userID)
	return scanGrant(row, ScopeUser, module)
}

func scanGrant(row *sql.Row, scope Scope, module Module) (Grant, error) {
	var g Grant
	if err := row.Scan(&g.Access, &g.Read, &g.Create, &g.Update, &g.Remove); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Grant{}, fmt.Errorf("%w: %s scope for %s", ErrNoActiveGrant, scope, module)
		}
		return Grant{}, err
	}
	return g, nil
}
