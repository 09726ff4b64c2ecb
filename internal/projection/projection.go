package projection

import (
	"errors"
	"fmt"
	"sort"

	"fieldgate.org/internal/field"
)

var (
	// ErrUnknownField indicates a write payload key outside the module's
	// allow-list. The whole request fails; dropping the key silently would
	// hide client bugs.
	ErrUnknownField = errors.New("projection: unknown field")
	// ErrNoFieldsAvailable indicates an empty projection. An empty insert or
	// update is nonsensical and must never reach the storage layer.
	ErrNoFieldsAvailable = errors.New("projection: no fields available")
)

// Columns is a finite ordered column list derived from the allow-list. It is
// the only type the query builders accept in identifier position, which is
// what keeps unauthorized columns out of generated SQL.
type Columns struct {
	names []string
}

// Len returns the number of projected columns.
func (c Columns) Len() int { return len(c.names) }

// Has reports whether the named column is part of the projection.
func (c Columns) Has(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns the projected column names in order.
func (c Columns) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// ForList projects the intersection of the allow-list and the configured
// view, in view order. Fields absent from the view are suppressed even when
// active.
func ForList(allow field.AllowList, view []string) (Columns, error) {
	var names []string
	for _, name := range view {
		if allow.Has(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Columns{}, ErrNoFieldsAvailable
	}
	return Columns{names: names}, nil
}

// ForGet projects every active field in configured order.
func ForGet(allow field.AllowList) (Columns, error) {
	names := allow.Names()
	if len(names) == 0 {
		return Columns{}, ErrNoFieldsAvailable
	}
	return Columns{names: names}, nil
}

// serverManaged columns are assigned by the service: the id comes from the
// sequence and the timestamps from the orchestrator. Marking one active only
// exposes it for reads; it is never writable from a payload.
var serverManaged = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// ForWrite intersects the allow-list with the payload keys. Columns come out
// in allow-list order with values aligned; any payload key outside the
// allow-list, or naming a server-managed column, aborts with ErrUnknownField.
func ForWrite(allow field.AllowList, payload map[string]any) (Columns, []any, error) {
	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if serverManaged[key] || !allow.Has(key) {
			return Columns{}, nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}

	var (
		names  []string
		values []any
	)
	for _, name := range allow.Names() {
		v, ok := payload[name]
		if !ok {
			continue
		}
		names = append(names, name)
		values = append(values, v)
	}
	if len(names) == 0 {
		return Columns{}, nil, ErrNoFieldsAvailable
	}
	return Columns{names: names}, values, nil
}
