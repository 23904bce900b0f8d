package httpapi

import (
	"net/http"
	"strings"

	"edifica.org/internal/audit"
	"edifica.org/internal/building"
)

type buildingRequest struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Description string `json:"description"`
	TotalUnits  int    `json:"total_units"`
	AdminUserID *int64 `json:"admin_user_id"`
}

type buildingUpdateRequest struct {
	Name        *string `json:"name"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
	TotalUnits  *int    `json:"total_units"`
	AdminUserID *int64  `json:"admin_user_id"`
	ClearAdmin  bool    `json:"clear_admin"`
}

func (a *API) handleBuildingsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listBuildings(w, r)
	case http.MethodPost:
		a.createBuilding(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleBuildingResource routes /v1/buildings/{id}[/...] plus the fixed
// subpaths check-name and my.
func (a *API) handleBuildingResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/buildings/")
	switch path {
	case "check-name":
		a.checkBuildingName(w, r)
		return
	case "my":
		a.listMyBuildings(w, r)
		return
	}

	head, rest, _ := strings.Cut(path, "/")
	id, err := pathID(head)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			a.getBuilding(w, r, id)
		case http.MethodPut:
			a.updateBuilding(w, r, id)
		case http.MethodDelete:
			a.deleteBuilding(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "units":
		a.listBuildingUnits(w, r, id)
	case "units/summary":
		a.buildingUnitsSummary(w, r, id)
	case "units/check-number":
		a.checkUnitNumber(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createBuilding(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req buildingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b, err := a.buildings.Create(r.Context(), p, building.CreateParams{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		TotalUnits:  req.TotalUnits,
		AdminUserID: req.AdminUserID,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "building.create", map[string]any{
		"building_id": b.ID,
	})
	w.Header().Set("Location", "/v1/buildings/"+itoa(b.ID))
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) getBuilding(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	b, err := a.buildings.Get(r.Context(), p, id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) listBuildings(w http.ResponseWriter, r *http.Request) {
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
	page, err := a.buildings.List(r.Context(), p, building.ListFilter{
		Name:    strings.TrimSpace(q.Get("name")),
		Address: strings.TrimSpace(q.Get("address")),
		Sort:    building.SortField(q.Get("sort")),
		Desc:    q.Get("order") == "desc",
		Offset:  offset,
		Limit:   limit,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) listMyBuildings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	items, err := a.buildings.ListMine(r.Context(), p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) updateBuilding(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req buildingUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	b, err := a.buildings.Update(r.Context(), p, id, building.UpdateParams{
		Name:        req.Name,
		Address:     req.Address,
		Description: req.Description,
		TotalUnits:  req.TotalUnits,
		AdminUserID: req.AdminUserID,
		ClearAdmin:  req.ClearAdmin,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "building.update", map[string]any{
		"building_id": b.ID,
	})
	writeJSON(w, http.StatusOK, b)
}

func (a *API) deleteBuilding(w http.ResponseWriter, r *http.Request, id int64) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if err := a.buildings.Delete(r.Context(), p, id); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "building.delete", map[string]any{
		"building_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) checkBuildingName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name query parameter is required")
		return
	}
	taken, err := a.buildings.CheckName(r.Context(), p, name)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "taken": taken})
}

// handlePublicBuilding serves /v1/public/buildings/{id}/basic-info with
// no authentication.
func (a *API) handlePublicBuilding(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/public/buildings/")
	head, rest, _ := strings.Cut(path, "/")
	if rest != "basic-info" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, err := pathID(head)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	info, err := a.buildings.PublicBasicInfo(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
