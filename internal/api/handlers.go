/**
 * @description
 * This file contains the HTTP handlers for the zakat-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application services, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store, internal/zakat: services,
 *   models, and typed errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zakatech/zakat-service/internal/app"
	"github.com/zakatech/zakat-service/internal/domain"
	"github.com/zakatech/zakat-service/internal/store"
	"github.com/zakatech/zakat-service/internal/zakat"
)

// ZakatHandlers holds the application services that handlers will use.
type ZakatHandlers struct {
	records *app.Service
	ledger  *app.Ledger
}

// NewZakatHandlers creates the handler set for the zakat API.
func NewZakatHandlers(records *app.Service, ledger *app.Ledger) *ZakatHandlers {
	return &ZakatHandlers{records: records, ledger: ledger}
}

// CreateRecordHandler handles POST /records.
func (h *ZakatHandlers) CreateRecordHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateRecordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.UserID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	rec, err := h.records.CreateRecord(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

// GetRecordHandler handles GET /records/{recordID}.
func (h *ZakatHandlers) GetRecordHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	rec, err := h.records.GetRecord(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// ListRecordsHandler handles GET /records?user_id=...
func (h *ZakatHandlers) ListRecordsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseID(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	records, err := h.records.ListRecords(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

// RefreshAssetsHandler handles POST /records/{recordID}/refresh. It returns
// the current asset candidates for review; nothing is persisted.
func (h *ZakatHandlers) RefreshAssetsHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	candidates, err := h.records.RefreshAssets(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, candidates)
}

// ApplyRefreshHandler handles POST /records/{recordID}/apply-refresh.
func (h *ZakatHandlers) ApplyRefreshHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	var payload domain.ApplyRefreshPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	rec, err := h.records.ApplyRefresh(r.Context(), recordID, payload.SelectedAssetIDs)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// FinalizeHandler handles POST /records/{recordID}/finalize.
func (h *ZakatHandlers) FinalizeHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	rec, err := h.records.Finalize(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// UnlockHandler handles POST /records/{recordID}/unlock.
func (h *ZakatHandlers) UnlockHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	rec, err := h.records.Unlock(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// DeleteRecordHandler handles DELETE /records/{recordID}.
func (h *ZakatHandlers) DeleteRecordHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	if err := h.records.DeleteRecord(r.Context(), recordID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

// RecordPaymentHandler handles POST /payments.
func (h *ZakatHandlers) RecordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.RecordPaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.NisabYearRecordID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "nisab_year_record_id is required")
		return
	}
	result, err := h.ledger.RecordPayment(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

// EditPaymentHandler handles PUT /payments/{paymentID}.
func (h *ZakatHandlers) EditPaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.parseID(w, chi.URLParam(r, "paymentID"))
	if !ok {
		return
	}
	var payload domain.EditPaymentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	result, err := h.ledger.EditPayment(r.Context(), paymentID, payload)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// DeletePaymentHandler handles DELETE /payments/{paymentID}.
func (h *ZakatHandlers) DeletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := h.parseID(w, chi.URLParam(r, "paymentID"))
	if !ok {
		return
	}
	result, err := h.ledger.DeletePayment(r.Context(), paymentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// ListRecordPaymentsHandler handles GET /records/{recordID}/payments.
func (h *ZakatHandlers) ListRecordPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	recordID, ok := h.parseID(w, chi.URLParam(r, "recordID"))
	if !ok {
		return
	}
	payments, err := h.ledger.ListPayments(r.Context(), recordID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// CalculateHandler handles GET /calculate?user_id=&methodology=&custom_nisab=.
// It is stateless: nothing is persisted.
func (h *ZakatHandlers) CalculateHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseID(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	methodologyID := domain.MethodologyID(r.URL.Query().Get("methodology"))
	if methodologyID == "" {
		methodologyID = domain.MethodologyStandard
	}
	if !domain.KnownMethodologyID(methodologyID) {
		h.writeError(w, http.StatusBadRequest, "Unknown methodology")
		return
	}

	methodology := domain.NewMethodology(methodologyID)
	if methodologyID == domain.MethodologyCustom {
		customNisab, err := decimal.NewFromString(r.URL.Query().Get("custom_nisab"))
		if err != nil || !customNisab.IsPositive() {
			h.writeError(w, http.StatusBadRequest, "A positive custom_nisab is required for the custom methodology")
			return
		}
		methodology = domain.NewCustomMethodology(customNisab)
	}

	result, err := h.records.CalculateAdhoc(r.Context(), userID, methodology)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// MethodologiesHandler handles GET /methodologies.
func (h *ZakatHandlers) MethodologiesHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"methodologies": domain.MethodologyCatalog()})
}

func (h *ZakatHandlers) parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid identifier")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps typed service errors to HTTP responses.
func (h *ZakatHandlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, zakat.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, "Invalid request: missing or empty required input")
	case errors.Is(err, zakat.ErrInvalidMethodology):
		h.writeError(w, http.StatusBadRequest, "Invalid methodology: unknown id or missing positive custom nisab")
	case errors.Is(err, app.ErrInvalidRecipientCategory):
		h.writeError(w, http.StatusBadRequest, "Recipient category must be one of the 8 canonical classes")
	case errors.Is(err, store.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, "Nisab year record not found")
	case errors.Is(err, store.ErrPaymentNotFound):
		h.writeError(w, http.StatusNotFound, "Payment record not found")
	case errors.Is(err, store.ErrActiveRecordExists):
		h.writeError(w, http.StatusConflict, "An active nisab year record already exists for this user")
	case errors.Is(err, app.ErrInvalidState):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrHasLinkedPayments):
		h.writeError(w, http.StatusConflict, "Record has linked payments; delete or reassign them first")
	case errors.Is(err, store.ErrVersionConflict):
		h.writeError(w, http.StatusConflict, "Record was modified concurrently; retry with fresh state")
	case errors.Is(err, app.ErrSnapshotUnreadable):
		h.writeError(w, http.StatusInternalServerError, "Asset snapshot is unreadable; the record has been flagged")
	default:
		log.Printf("level=error component=api msg=\"unhandled service error\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *ZakatHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *ZakatHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
