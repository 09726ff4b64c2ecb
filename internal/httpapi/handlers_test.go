package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestAPI(t *testing.T) (*API, sqlmock.Sqlmock, http.Handler) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	api, err := New(db, "test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	api.rateBurst = 1000
	api.ratePerSec = 1000
	return api, mock, api.Handler()
}

// expectSessionResolve queues the credential lookup for user 7.
func expectSessionResolve(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("select 1 from credentials").
		WithArgs("cafebabe", int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
}

func grantRow(access, read, create, update, remove bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"can_access", "can_read", "can_create", "can_update", "can_remove"}).
		AddRow(access, read, create, update, remove)
}

// expectFullGrants queues both scope lookups with every action permitted.
func expectFullGrants(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("from org_grants").
		WithArgs("companies").
		WillReturnRows(grantRow(true, true, true, true, true))
	mock.ExpectQuery("from user_grants").
		WithArgs("companies", int64(7)).
		WillReturnRows(grantRow(true, true, true, true, true))
}

// expectActiveFields queues the visibility lookup with id and name active.
func expectActiveFields(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("from fields").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"name", "display_name"}).
			AddRow("id", "ID").
			AddRow("name", "Name"))
}

func doRequest(h http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer cafebabe-7")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRootGreeting(t *testing.T) {
	_, mock, h := newTestAPI(t)

	rec := doRequest(h, http.MethodGet, "/", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	if data["message"] != "application is up and running" {
		t.Fatalf("unexpected greeting: %v", body)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected X-Request-Id header")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := doRequest(h, http.MethodGet, "/nope", "", false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "resource not found" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestMissingCredentialSkipsPipeline(t *testing.T) {
	_, mock, h := newTestAPI(t)

	rec := doRequest(h, http.MethodGet, "/v1/companies", "", false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "credential required" {
		t.Fatalf("unexpected body: %v", body)
	}
	// no expectations queued: a clean mock proves no stage touched storage
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("storage was touched: %v", err)
	}
}

func TestMalformedSchemeRejected(t *testing.T) {
	_, mock, h := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/companies", nil)
	req.Header.Set("Authorization", "Basic cafebabe-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("storage was touched: %v", err)
	}
}

func TestUnknownCredentialRejected(t *testing.T) {
	_, mock, h := newTestAPI(t)

	mock.ExpectQuery("select 1 from credentials").
		WithArgs("cafebabe", int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	rec := doRequest(h, http.MethodGet, "/v1/companies", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "credential invalid" {
		t.Fatalf("unexpected body: %v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListProjectsThroughView(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery("from views").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).
			AddRow("id").
			AddRow("name"))
	mock.ExpectQuery(`select "id", "name" from "companies" order by "id" limit`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Acme").
			AddRow(int64(2), "Globex"))

	rec := doRequest(h, http.MethodGet, "/v1/companies?headers=true", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	rows, _ := body["data"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows=%d, want 2", len(rows))
	}
	first, _ := rows[0].(map[string]any)
	if first["name"] != "Acme" {
		t.Fatalf("unexpected first row: %v", first)
	}
	headers, _ := body["headers"].([]any)
	if len(headers) != 2 || headers[0] != "ID" || headers[1] != "Name" {
		t.Fatalf("unexpected headers: %v", headers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListOmitsHeadersByDefault(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery("from views").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"field"}).AddRow("name"))
	mock.ExpectQuery(`select "name" from "companies" order by "id" limit`).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Acme"))

	rec := doRequest(h, http.MethodGet, "/v1/companies", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if _, present := body["headers"]; present {
		t.Fatalf("headers leaked into response: %v", body)
	}
	first, _ := body["data"].([]any)[0].(map[string]any)
	if _, leaked := first["id"]; leaked {
		t.Fatalf("id leaked past the view: %v", first)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeniedActionShortCircuits(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	mock.ExpectQuery("from org_grants").
		WithArgs("companies").
		WillReturnRows(grantRow(true, true, true, true, true))
	mock.ExpectQuery("from user_grants").
		WithArgs("companies", int64(7)).
		WillReturnRows(grantRow(true, true, false, true, true))

	rec := doRequest(h, http.MethodPost, "/v1/companies", `{"name":"Acme"}`, true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rec.Code)
	}
	body := decodeBody(t, rec)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "user") {
		t.Fatalf("error should name the rejecting scope: %v", body)
	}
	// no fields or insert expectations: denial stops the pipeline
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("pipeline ran past the denial: %v", err)
	}
}

func TestMissingOrgGrantForbidden(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	mock.ExpectQuery("from org_grants").
		WithArgs("companies").
		WillReturnRows(sqlmock.NewRows([]string{"can_access", "can_read", "can_create", "can_update", "can_remove"}))

	rec := doRequest(h, http.MethodGet, "/v1/companies", "", true)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d, want 403", rec.Code)
	}
	// no user_grants expectation: the missing org grant stops resolution
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("resolution ran past the missing grant: %v", err)
	}
}

func TestCreateCompany(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery(`insert into "companies"`).
		WithArgs("Initech").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))

	rec := doRequest(h, http.MethodPost, "/v1/companies", `{"name":"Initech"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/companies/12" {
		t.Fatalf("Location=%q", loc)
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	if data["id"] != float64(12) {
		t.Fatalf("unexpected body: %v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateUnknownFieldWritesNothing(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)

	rec := doRequest(h, http.MethodPost, "/v1/companies", `{"name":"Acme","shadow":"x"}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "shadow") {
		t.Fatalf("error should name the offending key: %v", body)
	}
	// no insert expectation: the whole request fails before storage
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("insert reached storage: %v", err)
	}
}

func TestWriteWithNoActiveFieldsFails(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "create", method: http.MethodPost, target: "/v1/companies", body: `{"name":"Acme"}`},
		{name: "update", method: http.MethodPut, target: "/v1/companies/42", body: `{"name":"Acme"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, mock, h := newTestAPI(t)

			expectSessionResolve(mock)
			expectFullGrants(mock)
			mock.ExpectQuery("from fields").
				WithArgs("companies").
				WillReturnRows(sqlmock.NewRows([]string{"name", "display_name"}))

			rec := doRequest(h, tc.method, tc.target, tc.body, true)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", rec.Code)
			}
			// no insert/update expectation: zero active fields must never
			// produce a successful empty write
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("write reached storage: %v", err)
			}
		})
	}
}

func TestUpdateMissingRowWritesNothing(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery("select exists").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	rec := doRequest(h, http.MethodPut, "/v1/companies/42", `{"name":"Acme"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	// no exec expectation: the missing row stops the update
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("update reached storage: %v", err)
	}
}

func TestUpdateCompany(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery("select exists").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`update "companies" set`).
		WithArgs("Acme", sqlmock.AnyArg(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doRequest(h, http.MethodPut, "/v1/companies/42", `{"name":"Acme"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteCompany(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)
	mock.ExpectQuery("select exists").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`delete from "companies"`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doRequest(h, http.MethodDelete, "/v1/companies/42", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	if data["id"] != float64(42) {
		t.Fatalf("unexpected body: %v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNonCanonicalIDRejected(t *testing.T) {
	_, mock, h := newTestAPI(t)

	expectSessionResolve(mock)
	expectFullGrants(mock)
	expectActiveFields(mock)

	rec := doRequest(h, http.MethodGet, "/v1/companies/007", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "invalid id" {
		t.Fatalf("unexpected body: %v", body)
	}
	// no companies expectation: the id never reaches storage
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("lookup reached storage: %v", err)
	}
}

func TestRegisterIssuesCredential(t *testing.T) {
	_, mock, h := newTestAPI(t)

	mock.ExpectQuery("insert into users").
		WithArgs("dev@example.com", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("insert into credentials").
		WithArgs(sqlmock.AnyArg(), int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := doRequest(h, http.MethodPost, "/v1/auth/register",
		`{"email":"dev@example.com","password":"s3cret"}`, false)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].(map[string]any)
	cred, _ := data["credential"].(string)
	if !strings.HasSuffix(cred, "-7") {
		t.Fatalf("credential not bound to user: %q", cred)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, h := newTestAPI(t)

	rec := doRequest(h, http.MethodDelete, "/v1/auth/login", "", false)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "POST" {
		t.Fatalf("Allow=%q", allow)
	}
}
