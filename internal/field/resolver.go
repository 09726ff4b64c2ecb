package field

import (
	"context"
	"database/sql"
	"errors"

	"fieldgate.org/internal/grant"
)

// Resolver loads field visibility configuration for a module.
type Resolver struct {
	db *sql.DB
}

// NewResolver constructs a Resolver.
func NewResolver(db *sql.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("field: database handle is required")
	}
	return &Resolver{db: db}, nil
}

// ActiveFields returns the module's active fields in configured order.
// Zero active rows yields an empty AllowList, not an error; downstream
// stages treat that as "nothing permitted".
func (r *Resolver) ActiveFields(ctx context.Context, module grant.Module) (AllowList, error) {
	rows, err := r.db.QueryContext(ctx, `
		select name, display_name
		from fields
		where module = $1 and is_active
		order by position
	`, module.String())
	if err != nil {
		return AllowList{}, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.Name, &f.DisplayName); err != nil {
			return AllowList{}, err
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return AllowList{}, err
	}
	return NewAllowList(fields), nil
}

// ListView returns the ordered field names participating in the module's
// list projection. The stored order determines both column and header order.
func (r *Resolver) ListView(ctx context.Context, module grant.Module) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		select field
		from views
		where module = $1
		order by position
	`, module.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var view []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		view = append(view, name)
	}
	return view, rows.Err()
}
