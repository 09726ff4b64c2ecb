package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fieldgate.org/internal/audit"
	"fieldgate.org/internal/field"
	"fieldgate.org/internal/grant"
	"fieldgate.org/internal/resource"
	"fieldgate.org/internal/session"
)

const companiesModule = grant.ModuleCompanies

// requestEnv is the per-request output of the authorization stages shared by
// every companies operation: the resolved user, the composed grant decision
// and the active field allow-list.
type requestEnv struct {
	userID   int64
	decision grant.Decision
	allow    field.AllowList
}

// authorize runs the capability and field visibility stages for one request.
// The module access bit is checked before the operation-specific bit, so an
// access denial wins regardless of the requested action.
func (a *API) authorize(r *http.Request, action grant.Action) (requestEnv, error) {
	userID, ok := session.UserIDFromContext(r.Context())
	if !ok {
		return requestEnv{}, session.ErrAuthMissing
	}
	decision, err := a.grants.Resolve(r.Context(), companiesModule, userID)
	if err != nil {
		return requestEnv{}, err
	}
	if err := decision.Allow(grant.ActionAccess); err != nil {
		return requestEnv{}, err
	}
	if err := decision.Allow(action); err != nil {
		return requestEnv{}, err
	}
	allow, err := a.fields.ActiveFields(r.Context(), companiesModule)
	if err != nil {
		return requestEnv{}, err
	}
	return requestEnv{userID: userID, decision: decision, allow: allow}, nil
}

func (a *API) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listCompanies(w, r)
	case http.MethodPost:
		a.createCompany(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleCompanyByID(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, "/v1/companies/")
	if rawID == "" || strings.Contains(rawID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getCompany(w, r, rawID)
	case http.MethodPut:
		a.updateCompany(w, r, rawID)
	case http.MethodDelete:
		a.deleteCompany(w, r, rawID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) listCompanies(w http.ResponseWriter, r *http.Request) {
	env, err := a.authorize(r, grant.ActionRead)
	if err != nil {
		translateError(w, r, err)
		return
	}
	view, err := a.fields.ListView(r.Context(), companiesModule)
	if err != nil {
		translateError(w, r, err)
		return
	}

	q := r.URL.Query()
	result, err := a.companies.List(r.Context(), resource.ListRequest{
		Page:       queryInt(q.Get("page")),
		Take:       queryInt(q.Get("limit")),
		NamePrefix: q.Get("name"),
		Allow:      env.allow,
		View:       view,
	})
	if err != nil {
		translateError(w, r, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	payload := map[string]any{"data": rows}
	if queryBool(q.Get("headers")) {
		payload["headers"] = result.Headers
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request, rawID string) {
	env, err := a.authorize(r, grant.ActionRead)
	if err != nil {
		translateError(w, r, err)
		return
	}
	record, err := a.companies.Get(r.Context(), env.allow, rawID)
	if err != nil {
		translateError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, record)
}

func (a *API) createCompany(w http.ResponseWriter, r *http.Request) {
	env, err := a.authorize(r, grant.ActionCreate)
	if err != nil {
		translateError(w, r, err)
		return
	}
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.companies.Create(r.Context(), env.allow, payload)
	if err != nil {
		translateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "companies.create", map[string]any{"id": id})
	w.Header().Set("Location", fmt.Sprintf("/v1/companies/%d", id))
	writeData(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request, rawID string) {
	env, err := a.authorize(r, grant.ActionUpdate)
	if err != nil {
		translateError(w, r, err)
		return
	}
	var payload map[string]any
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.companies.Update(r.Context(), env.allow, rawID, payload)
	if err != nil {
		translateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "companies.update", map[string]any{"id": id})
	writeData(w, http.StatusOK, map[string]any{"id": id})
}

func (a *API) deleteCompany(w http.ResponseWriter, r *http.Request, rawID string) {
	_, err := a.authorize(r, grant.ActionRemove)
	if err != nil {
		translateError(w, r, err)
		return
	}
	id, err := a.companies.Delete(r.Context(), rawID)
	if err != nil {
		translateError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "companies.remove", map[string]any{"id": id})
	writeData(w, http.StatusOK, map[string]any{"id": id})
}

// queryInt parses an optional numeric query parameter. Missing or malformed
// values come back as zero and fall through to the service defaults.
func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func queryBool(raw string) bool {
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}
