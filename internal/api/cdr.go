package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/routepbx/routepbx/internal/billing"
	"github.com/routepbx/routepbx/internal/database/models"
	"github.com/routepbx/routepbx/internal/tenant"
)

// cdrIngestRequest is the call-completion report posted by the switch-side
// CDR hook. Billing fields mirror the channel variables exported during
// resolution.
type cdrIngestRequest struct {
	CallUUID      string  `json:"call_uuid"`
	Domain        string  `json:"domain"`
	Context       string  `json:"context"`
	Direction     string  `json:"direction"`
	CallerNumber  string  `json:"caller_id_number"`
	CalleeNumber  string  `json:"destination_number"`
	StartEpoch    int64   `json:"start_epoch"`
	AnswerEpoch   int64   `json:"answer_epoch"`
	EndEpoch      int64   `json:"end_epoch"`
	BillSeconds   int     `json:"billsec"`
	HangupCause   string  `json:"hangup_cause"`
	RecordingFile string  `json:"record_file"`
	RouteID       int64   `json:"billing_route_id"`
	BillingOn     bool    `json:"billing_enabled"`
	RatePerMinute float64 `json:"billing_rate"`
	Increment     int     `json:"billing_increment"`
	SetupFee      float64 `json:"billing_setup_fee"`
}

// cdrResponse is the JSON shape of a stored, rated CDR.
type cdrResponse struct {
	ID           int64   `json:"id"`
	CallUUID     string  `json:"call_uuid"`
	TenantID     int64   `json:"tenant_id"`
	Direction    string  `json:"direction"`
	CallerNumber string  `json:"caller_id_number"`
	CalleeNumber string  `json:"destination_number"`
	BillSeconds  int     `json:"billsec"`
	RatedSeconds int     `json:"rated_seconds"`
	Cost         float64 `json:"cost"`
	Currency     string  `json:"currency"`
	HangupCause  string  `json:"hangup_cause"`
}

// handleCDRIngest rates and stores one completed call, then applies the
// prepaid debit. Re-posting a known call UUID returns the stored record
// unchanged so the switch-side hook can retry safely.
func (s *Server) handleCDRIngest(w http.ResponseWriter, r *http.Request) {
	var req cdrIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.CallUUID == "" {
		writeError(w, http.StatusBadRequest, "call_uuid is required")
		return
	}

	ctx := r.Context()

	existing, err := s.store.CDRs.GetByCallUUID(ctx, req.CallUUID)
	if err != nil {
		slog.Error("cdr lookup failed", "call_uuid", req.CallUUID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, toCDRResponse(existing))
		return
	}

	tn, _, err := s.tenants.Resolve(ctx, tenant.Query{Domain: req.Domain, Context: req.Context})
	if err != nil {
		slog.Error("cdr tenant resolution failed", "call_uuid", req.CallUUID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tn == nil {
		writeError(w, http.StatusUnprocessableEntity, "no tenant for call")
		return
	}

	bc, err := s.store.BillingConfigs.GetByTenant(ctx, tn.ID)
	if err != nil {
		slog.Error("cdr billing config lookup failed", "call_uuid", req.CallUUID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rate, taxPercent, currency := ingestRate(req, bc)
	rated := billing.RateCall(req.BillSeconds, rate, taxPercent)

	cdr := &models.CDR{
		CallUUID:      req.CallUUID,
		TenantID:      tn.ID,
		Direction:     req.Direction,
		CallerNumber:  req.CallerNumber,
		CalleeNumber:  req.CalleeNumber,
		StartedAt:     epochTime(req.StartEpoch),
		AnsweredAt:    epochTimePtr(req.AnswerEpoch),
		EndedAt:       epochTimePtr(req.EndEpoch),
		BillSeconds:   req.BillSeconds,
		RatedSeconds:  rated.RatedSeconds,
		RatePerMinute: rate.PerMinute,
		SetupFee:      rate.SetupFee,
		TaxPercent:    taxPercent,
		Cost:          rated.Total,
		Currency:      currency,
		HangupCause:   req.HangupCause,
		RecordingFile: req.RecordingFile,
	}
	if req.RouteID > 0 {
		id := req.RouteID
		cdr.OutboundRuleID = &id
	}

	if err := s.store.CDRs.Create(ctx, cdr); err != nil {
		slog.Error("cdr insert failed", "call_uuid", req.CallUUID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if bc != nil && bc.PrepaidEnabled && rated.Total > 0 {
		if err := s.store.BillingConfigs.Debit(ctx, tn.ID, rated.Total); err != nil {
			// The CDR stands; balance reconciliation is an operator task.
			slog.Error("prepaid debit failed", "call_uuid", req.CallUUID, "tenant_id", tn.ID, "amount", rated.Total, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, toCDRResponse(cdr))
}

// handleCDRGet returns a stored CDR by call UUID.
func (s *Server) handleCDRGet(w http.ResponseWriter, r *http.Request) {
	uuid := chi.URLParam(r, "uuid")

	cdr, err := s.store.CDRs.GetByCallUUID(r.Context(), uuid)
	if err != nil {
		slog.Error("cdr lookup failed", "call_uuid", uuid, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cdr == nil {
		writeError(w, http.StatusNotFound, "cdr not found")
		return
	}
	writeJSON(w, http.StatusOK, toCDRResponse(cdr))
}

// ingestRate picks the rate to apply: route-level overrides exported at
// resolution time win over the tenant's billing defaults.
func ingestRate(req cdrIngestRequest, bc *models.BillingConfig) (rate billing.Rate, taxPercent float64, currency string) {
	currency = "USD"
	if bc != nil {
		rate = billing.Rate{
			PerMinute:        bc.DefaultRatePerMinute,
			SetupFee:         bc.DefaultSetupFee,
			IncrementSeconds: bc.DefaultIncrementSeconds,
		}
		taxPercent = bc.TaxPercent
		if bc.Currency != "" {
			currency = bc.Currency
		}
	}
	if req.BillingOn {
		rate = billing.Rate{
			PerMinute:        req.RatePerMinute,
			SetupFee:         req.SetupFee,
			IncrementSeconds: req.Increment,
		}
	}
	return rate, taxPercent, currency
}

func toCDRResponse(c *models.CDR) cdrResponse {
	return cdrResponse{
		ID:           c.ID,
		CallUUID:     c.CallUUID,
		TenantID:     c.TenantID,
		Direction:    c.Direction,
		CallerNumber: c.CallerNumber,
		CalleeNumber: c.CalleeNumber,
		BillSeconds:  c.BillSeconds,
		RatedSeconds: c.RatedSeconds,
		Cost:         c.Cost,
		Currency:     c.Currency,
		HangupCause:  c.HangupCause,
	}
}

func epochTime(epoch int64) time.Time {
	if epoch <= 0 {
		return time.Time{}
	}
	return time.Unix(epoch, 0).UTC()
}

func epochTimePtr(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}
