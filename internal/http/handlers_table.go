package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	applog "fintrack/internal/log"
	"fintrack/internal/table"
)

type modeRequest struct {
	Mode table.ViewMode `json:"mode"`
}

type pageRequest struct {
	Page int `json:"page"`
}

type viewportRequest struct {
	Width int `json:"width"`
}

func (h *handlers) controller(w http.ResponseWriter, r *http.Request) (*table.Controller, bool) {
	ctrl, err := h.deps.Controllers.Get(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return ctrl, true
}

// respond writes the current view, or the error if the action failed.
func respond(w http.ResponseWriter, r *http.Request, ctrl *table.Controller, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Page())
}

func (h *handlers) tableView(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	var err error
	if v := r.URL.Query().Get("viewport"); v != "" {
		px, convErr := strconv.Atoi(v)
		if convErr != nil {
			writeError(w, r, fmt.Errorf("%w: viewport must be an integer", errBadRequest))
			return
		}
		err = ctrl.SetViewportWidth(px)
	}
	respond(w, r, ctrl, err)
}

func (h *handlers) tableRefresh(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.Refresh(r.Context()))
}

func (h *handlers) tableMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if !req.Mode.Valid() {
		writeError(w, r, fmt.Errorf("%w: mode must be recent or all", errBadRequest))
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.SetMode(req.Mode))
}

func (h *handlers) tableFilters(w http.ResponseWriter, r *http.Request) {
	var f table.Filters
	if err := decodeJSON(r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Type == "" {
		f.Type = table.TypeAll
	}
	if !f.Type.Valid() {
		writeError(w, r, fmt.Errorf("%w: type must be all, income or expense", errBadRequest))
		return
	}
	f.Search = sanitizeInput(f.Search)
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.SetFilters(f))
}

func (h *handlers) tablePage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.SetPage(req.Page))
}

func (h *handlers) tableViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.SetViewportWidth(req.Width))
}

func (h *handlers) startEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	_, err := ctrl.StartEdit(chi.URLParam(r, "id"))
	respond(w, r, ctrl, err)
}

func (h *handlers) saveEdit(w http.ResponseWriter, r *http.Request) {
	var d table.EditDraft
	if err := decodeJSON(r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	d.Description = sanitizeInput(d.Description)
	d.Category = sanitizeInput(d.Category)
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.SaveEdit(r.Context(), d))
}

func (h *handlers) cancelEdit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.CancelEdit()
	respond(w, r, ctrl, nil)
}

func (h *handlers) confirmDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.ConfirmDelete(chi.URLParam(r, "id")))
}

func (h *handlers) executeDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.ExecuteDelete(r.Context()))
}

func (h *handlers) cancelDelete(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctrl.CancelDelete()
	respond(w, r, ctrl, nil)
}

func (h *handlers) undo(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	respond(w, r, ctrl, ctrl.Undo(r.Context()))
}

func (h *handlers) exportCSV(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	body, err := ctrl.ExportCSV()
	h.writeExport(w, r, body, err, "text/csv; charset=utf-8", "csv")
}

func (h *handlers) exportPDF(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	body, err := ctrl.ExportPDF()
	h.writeExport(w, r, body, err, "application/pdf", "pdf")
}

func (h *handlers) writeExport(w http.ResponseWriter, r *http.Request, body []byte, err error, contentType, ext string) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	name := fmt.Sprintf("transactions-%s.%s", h.now().Format("2006-01-02"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Export write failed", applog.FieldError, err)
	}
}
