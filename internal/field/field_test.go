package field

import (
	"context"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"fieldgate.org/internal/grant"
)

func TestAllowList(t *testing.T) {
	a := NewAllowList([]Field{
		{Name: "id", DisplayName: "Id"},
		{Name: "name", DisplayName: "Name"},
		{Name: "name", DisplayName: "Duplicate"},
		{Name: "", DisplayName: "Blank"},
	})

	if a.Len() != 2 {
		t.Fatalf("expected 2 fields, got %d", a.Len())
	}
	if !a.Has("name") || a.Has("created_at") {
		t.Fatalf("membership incorrect: %v", a.Names())
	}
	if got := a.Names(); !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if dn, ok := a.DisplayName("name"); !ok || dn != "Name" {
		t.Fatalf("first definition should win, got %q ok=%v", dn, ok)
	}

	var empty AllowList
	if !empty.Empty() || empty.Has("name") {
		t.Fatal("zero value must permit nothing")
	}
}

func newTestResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r, err := NewResolver(db)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, mock
}

func TestActiveFieldsOrdered(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery("from fields").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"name", "display_name"}).
			AddRow("id", "Id").
			AddRow("name", "Name"))

	allow, err := r.ActiveFields(context.Background(), grant.ModuleCompanies)
	if err != nil {
		t.Fatalf("ActiveFields: %v", err)
	}
	if got := allow.Names(); !reflect.DeepEqual(got, []string{"id", "name"}) {
		t.Fatalf("unexpected fields: %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestActiveFieldsEmptyIsNotAnError(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery("from fields").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"name", "display_name"}))

	allow, err := r.ActiveFields(context.Background(), grant.ModuleCompanies)
	if err != nil {
		t.Fatalf("ActiveFields: %v", err)
	}
	if !allow.Empty() {
		t.Fatalf("expected empty allow list, got %v", allow.Names())
	}
}

func TestListViewOrdered(t *testing.T) {
	r, mock := newTestResolver(t)

	mock.ExpectQuery("from views").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).
			AddRow("name").
			AddRow("id"))

	view, err := r.ListView(context.Background(), grant.ModuleCompanies)
	if err != nil {
		t.Fatalf("ListView: %v", err)
	}
	if !reflect.DeepEqual(view, []string{"name", "id"}) {
		t.Fatalf("stored order must be preserved, got %v", view)
	}
}
