package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldgate.org/internal/field"
	"fieldgate.org/internal/projection"
)

const (
	table = "companies"

	defaultTake = 10
	maxTake     = 100
)

var (
	// ErrInvalidID indicates the id is not a canonical non-negative integer.
	ErrInvalidID = errors.New("resource: invalid id")
	// ErrNotFound indicates no row matches the id.
	ErrNotFound = errors.New("resource: not found")
)

// Service executes allow-listed CRUD against the companies table. Every
// column that reaches a statement comes out of a projection built from the
// request's AllowList; the service itself never accepts raw column names.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(db *sql.DB, opts ...Option) (*Service, error) {
	if db == nil {
		return nil, errors.New("resource: database handle is required")
	}
	s := &Service{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListRequest carries pagination and filter input together with the
// per-request field configuration.
type ListRequest struct {
	Page       int
	Take       int
	NamePrefix string
	Allow      field.AllowList
	View       []string
}

// ListResult is an ordered page of projected rows.
type ListResult struct {
	Columns []string
	Headers []string
	Rows    []map[string]any
}

// List returns a page of rows projected through the configured view.
// Take falls back to the default whenever the supplied value is negative,
// zero or above the upper bound; non-positive pages behave as page one.
// The name prefix filter is applied only when the name field is permitted.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	cols, err := projection.ForList(req.Allow, req.View)
	if err != nil {
		return ListResult{}, err
	}

	take := req.Take
	if take < 1 || take > maxTake {
		take = defaultTake
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * take

	var (
		where []string
		args  []any
	)
	if req.NamePrefix != "" && req.Allow.Has("name") {
		where = append(where, fmt.Sprintf(`%s ilike $1`, projection.QuoteIdent("name")))
		args = append(args, likePrefix(req.NamePrefix))
	}
	tail := fmt.Sprintf("order by %s limit $%d offset $%d",
		projection.QuoteIdent("id"), len(args)+1, len(args)+2)
	args = append(args, take, skip)

	rows, err := s.db.QueryContext(ctx, projection.SelectSQL(table, cols, where, tail), args...)
	if err != nil {
		return ListResult{}, err
	}
	defer rows.Close()

	records, err := scanRows(rows, cols.Names())
	if err != nil {
		return ListResult{}, err
	}

	names := cols.Names()
	headers := make([]string, len(names))
	for i, name := range names {
		if dn, ok := req.Allow.DisplayName(name); ok {
			headers[i] = dn
		} else {
			headers[i] = name
		}
	}
	return ListResult{Columns: names, Headers: headers, Rows: records}, nil
}

// Get returns a single row projected through the active fields.
func (s *Service) Get(ctx context.Context, allow field.AllowList, rawID string) (map[string]any, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	cols, err := projection.ForGet(allow)
	if err != nil {
		return nil, err
	}

	query := projection.SelectSQL(table, cols, []string{fmt.Sprintf(`%s = $1`, projection.QuoteIdent("id"))}, "")
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records, err := scanRows(rows, cols.Names())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Create validates the payload against the allow-list and inserts a row,
// returning the generated id.
func (s *Service) Create(ctx context.Context, allow field.AllowList, payload map[string]any) (int64, error) {
	cols, values, err := projection.ForWrite(allow, payload)
	if err != nil {
		return 0, err
	}
	var id int64
	row := s.db.QueryRowContext(ctx, projection.InsertSQL(table, cols), values...)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Update applies the allow-listed payload fields to an existing row,
// stamping updated_at in the same statement. The existence check precedes
// the mutation; a failed check aborts hard and never falls through.
func (s *Service) Update(ctx context.Context, allow field.AllowList, rawID string, payload map[string]any) (int64, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return 0, err
	}
	cols, values, err := projection.ForWrite(allow, payload)
	if err != nil {
		return 0, err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return 0, err
	}

	args := append(values, s.now().UTC(), id)
	if _, err := s.db.ExecContext(ctx, projection.UpdateSQL(table, cols), args...); err != nil {
		return 0, err
	}
	return id, nil
}

// Delete removes an existing row and returns its id. Shares the existence
// check semantics of Update.
func (s *Service) Delete(ctx context.Context, rawID string) (int64, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return 0, err
	}
	if err := s.mustExist(ctx, id); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("delete from %s where %s = $1",
		projection.QuoteIdent(table), projection.QuoteIdent("id"))
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return 0, err
	}
	return id, nil
}

// mustExist verifies the row is present before a mutation. The check and the
// mutation are two statements; a row vanishing in between surfaces as a
// zero-row mutation, not a silent no-op result.
func (s *Service) mustExist(ctx context.Context, id int64) error {
	query := fmt.Sprintf("select exists(select 1 from %s where %s = $1)",
		projection.QuoteIdent(table), projection.QuoteIdent("id"))
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// ParseID accepts only the canonical decimal form of a non-negative id:
// digits, no sign, no decimals, no leading zeros beyond "0".
func ParseID(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrInvalidID
	}
	if len(raw) > 1 && raw[0] == '0' {
		return 0, ErrInvalidID
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, ErrInvalidID
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidID
	}
	return id, nil
}

// likePrefix escapes LIKE metacharacters and anchors the pattern at the
// start for a case-insensitive prefix match.
func likePrefix(prefix string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(prefix) + "%"
}

func scanRows(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var records []map[string]any
	for rows.Next() {
		dests := make([]any, len(cols))
		for i := range dests {
			dests[i] = new(any)
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, name := range cols {
			v := *(dests[i].(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[name] = v
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
