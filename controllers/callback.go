package controllers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"paylink/processor"
	"paylink/services"
	"paylink/utils"
)

// CallbackController receives processor webhooks. Deliveries are at least
// once; the ledger makes replays return the entry recorded the first time.
type CallbackController struct {
	svc           *services.Service
	webhookSecret string
}

func NewCallbackController(svc *services.Service, webhookSecret string) *CallbackController {
	return &CallbackController{svc: svc, webhookSecret: webhookSecret}
}

func (c *CallbackController) Payments(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid body"})
		return
	}
	cb, err := processor.ParseStripeCallback(body, r.Header.Get("Stripe-Signature"), c.webhookSecret)
	if err != nil {
		log.Printf("[callback] rejected webhook: %v", err)
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid signature"})
		return
	}

	switch cb.Type {
	case processor.CallbackSucceeded:
		c.succeeded(w, r, cb)
	case processor.CallbackFailed:
		c.failed(w, r, cb)
	default:
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Ignored"})
	}
}

func (c *CallbackController) succeeded(w http.ResponseWriter, r *http.Request, cb *processor.Callback) {
	in, ok := recordInputFrom(cb)
	if !ok {
		log.Printf("[callback] event %s for %s carries no link metadata, ignoring", cb.EventID, cb.Reference)
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Ignored"})
		return
	}
	txn, err := c.svc.RecordTransaction(r.Context(), in)
	if err != nil {
		c.writeOutcome(w, cb, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Recorded", Data: map[string]interface{}{"transaction_id": txn.ID}})
}

func (c *CallbackController) failed(w http.ResponseWriter, r *http.Request, cb *processor.Callback) {
	in, ok := recordInputFrom(cb)
	if !ok {
		utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Ignored"})
		return
	}
	in.Message = strings.TrimSpace(cb.FailureMessage)
	if cb.FailureCode != "" {
		in.Metadata["decline_code"] = cb.FailureCode
	}
	txn, err := c.svc.RecordFailure(r.Context(), in)
	if err != nil {
		c.writeOutcome(w, cb, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Recorded", Data: map[string]interface{}{"transaction_id": txn.ID}})
}

// writeOutcome acknowledges permanent rejections so the processor stops
// retrying, and answers 500 on store errors so it retries later.
func (c *CallbackController) writeOutcome(w http.ResponseWriter, cb *processor.Callback, err error) {
	if services.KindOf(err) == "" {
		log.Printf("[callback] event %s: %v", cb.EventID, err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Internal server error"})
		return
	}
	if services.RefundRequired(err) {
		log.Printf("[callback] charge %s captured but link %s could not be recorded (%v): refund required", cb.Reference, cb.Metadata["link_token"], err)
	} else {
		log.Printf("[callback] event %s rejected: %v", cb.EventID, err)
	}
	var e *services.Error
	errors.As(err, &e)
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: false, Code: e.Code, Message: e.Message})
}

func recordInputFrom(cb *processor.Callback) (services.RecordInput, bool) {
	token := strings.TrimSpace(cb.Metadata["link_token"])
	payerID, err1 := strconv.ParseUint(cb.Metadata["payer_id"], 10, 64)
	payeeID, err2 := strconv.ParseUint(cb.Metadata["payee_id"], 10, 64)
	if token == "" || err1 != nil || err2 != nil {
		return services.RecordInput{}, false
	}
	meta := map[string]interface{}{"event_id": cb.EventID}
	if id := cb.Metadata["authorization_id"]; id != "" {
		meta["authorization_id"] = id
	}
	return services.RecordInput{
		LinkToken:          &token,
		PayerID:            uint(payerID),
		PayeeID:            uint(payeeID),
		GrossAmount:        cb.Amount,
		Currency:           cb.Currency,
		ProcessorReference: cb.Reference,
		Metadata:           meta,
	}, true
}
