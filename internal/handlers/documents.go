package handlers

import (
	"log/slog"
	"net/http"

	"github.com/diewo77/chantierpro/internal/auth"
	"github.com/diewo77/chantierpro/internal/gate"
	"github.com/diewo77/chantierpro/internal/httpx"
	"github.com/diewo77/chantierpro/internal/models"
	"github.com/diewo77/chantierpro/internal/policy"
	"github.com/diewo77/chantierpro/internal/services"
	"github.com/diewo77/chantierpro/internal/validation"
	"github.com/diewo77/chantierpro/internal/workflow"
)

// DocumentHandler serves quotes, invoices and their progressive situations.
// Route middleware checks the profile permission; the handlers then check
// ownership on the loaded document.
type DocumentHandler struct {
	svc  *services.DocumentService
	gate Authorizer
	log  *slog.Logger
}

func NewDocumentHandler(svc *services.DocumentService, authz Authorizer, lg *slog.Logger) *DocumentHandler {
	if lg == nil {
		lg = slog.Default()
	}
	return &DocumentHandler{svc: svc, gate: authz, log: lg}
}

// load fetches the {id} document and checks the current user may run action on it.
func (h *DocumentHandler) load(w http.ResponseWriter, r *http.Request, param string, action gate.Action) (*models.Document, bool) {
	id, ok := urlID(r, param)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return nil, false
	}
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return nil, false
	}
	if err := h.gate.Authorize(r.Context(), action, policy.ResourceDocument, doc); err != nil {
		writeServiceError(w, h.log, err)
		return nil, false
	}
	return doc, true
}

// List: GET /documents?type=&status=
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	f := services.ListFilter{OwnerID: userID}
	if h.gate.IsAdmin(r.Context(), userID) {
		f.OwnerID = 0
	}

	v := validation.Violations{}
	q := r.URL.Query()
	if s := q.Get("type"); s != "" {
		t, err := workflow.ParseDocType(s)
		if err != nil {
			v.Add("type", "invalid")
		}
		f.Type = t
	}
	if s := q.Get("status"); s != "" {
		st, err := workflow.ParseStatus(s)
		if err != nil {
			v.Add("status", "invalid")
		}
		f.Status = st
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", v)
		return
	}

	docs, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"documents": newDocumentList(docs)})
}

// Create: POST /documents
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req createRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	typ, err := workflow.ParseDocType(req.Type)
	if err != nil {
		typ = workflow.DocType(req.Type)
	}
	doc, err := h.svc.Create(r.Context(), userID, services.CreateInput{
		Type:          typ,
		Title:         req.Title,
		ClientName:    req.ClientName,
		ReverseCharge: req.ReverseCharge,
		Lines:         lineInputs(req.Lines),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newDocumentResponse(doc))
}

// Get: GET /documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionView)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc))
}

// AddLines: POST /documents/{id}/lines
func (h *DocumentHandler) AddLines(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionUpdate)
	if !ok {
		return
	}
	var req linesRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	doc, err := h.svc.AddLines(r.Context(), doc.ID, userID, lineInputs(req.Lines))
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc))
}

// UpdateLine: PUT /documents/{id}/lines/{lineID}
func (h *DocumentHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionUpdate)
	if !ok {
		return
	}
	lineID, ok := urlID(r, "lineID")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_line_id", nil)
		return
	}
	var req lineRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	doc, err := h.svc.UpdateLine(r.Context(), doc.ID, lineID, userID, req.input())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc))
}

// RemoveLine: DELETE /documents/{id}/lines/{lineID}
func (h *DocumentHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionUpdate)
	if !ok {
		return
	}
	lineID, ok := urlID(r, "lineID")
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_line_id", nil)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	doc, err := h.svc.RemoveLine(r.Context(), doc.ID, lineID, userID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc))
}

// SetReverseCharge: PUT /documents/{id}/autoliquidation
func (h *DocumentHandler) SetReverseCharge(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionUpdate)
	if !ok {
		return
	}
	var req reverseChargeRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.Enabled == nil {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Violations{"enabled": "required"})
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	doc, err := h.svc.SetReverseCharge(r.Context(), doc.ID, userID, *req.Enabled)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDocumentResponse(doc))
}

// Transition: POST /documents/{id} {"action": "send"}
func (h *DocumentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	action, err := workflow.ParseAction(req.Action)
	if err != nil {
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", validation.Violations{"action": "invalid"})
		return
	}
	doc, ok := h.load(w, r, "id", gate.Action(action))
	if !ok {
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.svc.Transition(r.Context(), doc.ID, userID, action)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	out := actionResponse{Document: newDocumentResponse(res.Document)}
	if res.Invoice != nil {
		inv := newDocumentResponse(res.Invoice)
		out.Invoice = &inv
	}
	httpx.JSON(w, http.StatusOK, out)
}

// VATBreakdown: GET /documents/{id}/vat-breakdown
func (h *DocumentHandler) VATBreakdown(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionView)
	if !ok {
		return
	}
	b, err := h.svc.VATBreakdown(r.Context(), doc.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newBreakdownResponse(b))
}

// Events: GET /documents/{id}/events
func (h *DocumentHandler) Events(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r, "id", gate.ActionView)
	if !ok {
		return
	}
	events, err := h.svc.Events(r.Context(), doc.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": newEventList(events)})
}

// CreateSituation: POST /documents/{id}/situations
func (h *DocumentHandler) CreateSituation(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.load(w, r, "id", gate.Action(workflow.Spawn))
	if !ok {
		return
	}
	var req situationRequest
	if err := httpx.Decode(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.svc.CreateSituation(r.Context(), parent.ID, userID, services.SituationInput{
		CompletionPct: req.CompletionPct,
		Notes:         req.Notes,
		Title:         req.Title,
		Lines:         lineInputs(req.Lines),
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	report := newSituationsResponse(&res.SituationReport)
	httpx.JSON(w, http.StatusCreated, situationCreatedResponse{
		Situation:   newDocumentResponse(res.Situation),
		Progress:    report.Progress,
		Overbilling: report.Overbilling,
	})
}

// Situations: GET /documents/{id}/situations
func (h *DocumentHandler) Situations(w http.ResponseWriter, r *http.Request) {
	parent, ok := h.load(w, r, "id", gate.ActionView)
	if !ok {
		return
	}
	report, err := h.svc.Situations(r.Context(), parent.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newSituationsResponse(report))
}
