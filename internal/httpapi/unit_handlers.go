package httpapi

import (
	"net/http"
	"strings"

	"edifica.org/internal/audit"
	"edifica.org/internal/unit"
)

type unitCreateRequest struct {
	BuildingID int64   `json:"building_id"`
	Number     string  `json:"number"`
	Type       string  `json:"type"`
	Area       float64 `json:"area"`
	OwnerID    *int64  `json:"owner_id"`
	TenantID   *int64  `json:"tenant_id"`
}

type unitUpdateRequest struct {
	Number *string  `json:"number"`
	Type   *string  `json:"type"`
	Area   *float64 `json:"area"`
	Active *bool    `json:"active"`
}

type assignRequest struct {
	IdentityID int64 `json:"identity_id"`
}

func (a *API) handleUnitsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createUnit(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

// handleUnitResource routes /v1/units/{id}[/owner|/tenant] plus the
// listing subpaths my, owner/{id} and tenant/{id}.
func (a *API) handleUnitResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/units/")
	head, rest, _ := strings.Cut(path, "/")

	switch head {
	case "my":
		a.listMyUnits(w, r)
		return
	case "owner":
		a.listUnitsByOwner(w, r, rest)
		return
	case "tenant":
		a.listUnitsByTenant(w, r, rest)
		return
	}

	id, err := pathID(head)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getUnit(w, r, id)
		case http.MethodPut:
			a.updateUnit(w, r, id)
		case http.MethodDelete:
			a.deleteUnit(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "owner":
		a.unitOwner(w, r, id)
	case "tenant":
		a.unitTenant(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createUnit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req unitCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.units.Create(r.Context(), p, unit.CreateParams{
		BuildingID: req.BuildingID,
		Number:     req.Number,
		Type:       unit.Type(strings.ToUpper(strings.TrimSpace(req.Type))),
		Area:       req.Area,
		OwnerID:    req.OwnerID,
		TenantID:   req.TenantID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "unit.create", map[string]any{
		"unit_id":     u.ID,
		"building_id": u.BuildingID,
	})
	w.Header().Set("Location", "/v1/units/"+itoa(u.ID))
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) getUnit(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	u, err := a.units.Get(r.Context(), p, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) listBuildingUnits(w http.ResponseWriter, r *http.Request, buildingID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	limit, err := parseBoundedInt(q.Get("limit"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit "+err.Error())
		return
	}
	offset, err := parseBoundedInt(q.Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "offset "+err.Error())
		return
	}
	f := unit.ListFilter{
		Number: strings.TrimSpace(q.Get("number")),
		Type:   unit.Type(strings.ToUpper(strings.TrimSpace(q.Get("type")))),
		Offset: offset,
		Limit:  limit,
	}
	if raw := q.Get("has_owner"); raw != "" {
		hasOwner := raw == "true"
		f.HasOwner = &hasOwner
	}
	page, err := a.units.ListByBuilding(r.Context(), p, buildingID, f)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) listUnitsByOwner(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	ownerID, err := pathID(rawID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	items, err := a.units.ListByOwner(r.Context(), p, ownerID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listUnitsByTenant(w http.ResponseWriter, r *http.Request, rawID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	tenantID, err := pathID(rawID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	items, err := a.units.ListByTenant(r.Context(), p, tenantID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) listMyUnits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	items, err := a.units.ListMine(r.Context(), p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) updateUnit(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req unitUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	params := unit.UpdateParams{
		Number: req.Number,
		Area:   req.Area,
		Active: req.Active,
	}
	if req.Type != nil {
		t := unit.Type(strings.ToUpper(strings.TrimSpace(*req.Type)))
		params.Type = &t
	}
	u, err := a.units.Update(r.Context(), p, id, params)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "unit.update", map[string]any{
		"unit_id": u.ID,
	})
	writeJSON(w, http.StatusOK, u)
}

func (a *API) deleteUnit(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.units.Delete(r.Context(), p, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "unit.delete", map[string]any{
		"unit_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

// unitOwner handles POST (assign) and DELETE (remove) on
// /v1/units/{id}/owner.
func (a *API) unitOwner(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		u, err := a.units.AssignOwner(r.Context(), p, id, req.IdentityID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "unit.assign_owner", map[string]any{
			"unit_id": id, "owner_id": req.IdentityID,
		})
		writeJSON(w, http.StatusOK, u)
	case http.MethodDelete:
		u, err := a.units.RemoveOwner(r.Context(), p, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "unit.remove_owner", map[string]any{
			"unit_id": id,
		})
		writeJSON(w, http.StatusOK, u)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// unitTenant mirrors unitOwner for tenants.
func (a *API) unitTenant(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req assignRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		u, err := a.units.AssignTenant(r.Context(), p, id, req.IdentityID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "unit.assign_tenant", map[string]any{
			"unit_id": id, "tenant_id": req.IdentityID,
		})
		writeJSON(w, http.StatusOK, u)
	case http.MethodDelete:
		u, err := a.units.RemoveTenant(r.Context(), p, id)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "unit.remove_tenant", map[string]any{
			"unit_id": id,
		})
		writeJSON(w, http.StatusOK, u)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) buildingUnitsSummary(w http.ResponseWriter, r *http.Request, buildingID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	sum, err := a.units.BuildingSummary(r.Context(), p, buildingID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) checkUnitNumber(w http.ResponseWriter, r *http.Request, buildingID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	number := strings.TrimSpace(r.URL.Query().Get("number"))
	if number == "" {
		writeError(w, r, http.StatusBadRequest, "number query parameter is required")
		return
	}
	taken, err := a.units.CheckNumber(r.Context(), p, buildingID, number)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"number": number, "taken": taken})
}
