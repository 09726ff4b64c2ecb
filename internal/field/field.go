package field

// Field pairs a module column with its configured display name.
type Field struct {
	Name        string
	DisplayName string
}

// AllowList is the ordered set of currently active fields for a module,
// built once per request and threaded through projection and storage. An
// empty AllowList means no field is permitted; callers fail closed.
type AllowList struct {
	fields []Field
	index  map[string]int
}

// NewAllowList builds an AllowList preserving the given order. Later
// duplicates are ignored.
func NewAllowList(fields []Field) AllowList {
	a := AllowList{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		if _, ok := a.index[f.Name]; ok {
			continue
		}
		a.index[f.Name] = len(a.fields)
		a.fields = append(a.fields, f)
	}
	return a
}

// Len returns the number of permitted fields.
func (a AllowList) Len() int { return len(a.fields) }

// Empty reports whether no field is permitted.
func (a AllowList) Empty() bool { return len(a.fields) == 0 }

// Has reports whether the named field is permitted.
func (a AllowList) Has(name string) bool {
	_, ok := a.index[name]
	return ok
}

// DisplayName returns the configured display name for a permitted field.
func (a AllowList) DisplayName(name string) (string, bool) {
	i, ok := a.index[name]
	if !ok {
		return "", false
	}
	return a.fields[i].DisplayName, true
}

// Names returns the permitted field names in configured order.
func (a AllowList) Names() []string {
	out := make([]string, len(a.fields))
	for i, f := range a.fields {
		out[i] = f.Name
	}
	return out
}

// Fields returns a copy of the permitted fields in configured order.
func (a AllowList) Fields() []Field {
	out := make([]Field, len(a.fields))
	copy(out, a.fields)
	return out
}
