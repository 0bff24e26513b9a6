package controllers

import (
	"net/http"
	"strconv"
	"time"

	"paylink/middleware"
	"paylink/models"
	"paylink/services"
	"paylink/utils"
)

type LinkResponse struct {
	ID          uint      `json:"id"`
	LinkID      string    `json:"link_id"`
	SecureURL   string    `json:"secure_url,omitempty"`
	IssuerID    uint      `json:"issuer_id"`
	ServiceName string    `json:"service_name"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Description *string   `json:"description,omitempty"`
	ClientEmail string    `json:"client_email"`
	ClientName  *string   `json:"client_name,omitempty"`
	Status      string    `json:"status"`
	IsPaid      bool      `json:"is_paid"`
	IsExpired   bool      `json:"is_expired"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func linkResponse(link *models.PaymentLink, secureURL string, isPaid, isExpired bool) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		LinkID:      link.Token,
		SecureURL:   secureURL,
		IssuerID:    link.IssuerID,
		ServiceName: link.ServiceName,
		Amount:      link.Amount.StringFixed(2),
		Currency:    link.Currency,
		Description: link.Description,
		ClientEmail: link.ClientEmail,
		ClientName:  link.ClientName,
		Status:      link.Status,
		IsPaid:      isPaid,
		IsExpired:   isExpired,
		ExpiresAt:   link.ExpiresAt.UTC(),
		CreatedAt:   link.CreatedAt.UTC(),
	}
}

type TransactionResponse struct {
	ID                 uint       `json:"id"`
	LinkID             string     `json:"link_id,omitempty"`
	PayerID            uint       `json:"payer_id"`
	PayeeID            uint       `json:"payee_id"`
	GrossAmount        string     `json:"gross_amount"`
	PlatformFee        string     `json:"platform_fee"`
	PayeeEarnings      string     `json:"payee_earnings"`
	FeeRate            string     `json:"fee_rate"`
	Currency           string     `json:"currency"`
	ProcessorReference string     `json:"processor_reference,omitempty"`
	Status             string     `json:"status"`
	Message            string     `json:"message,omitempty"`
	Acknowledged       bool       `json:"acknowledged"`
	AcknowledgedAt     *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

func transactionResponse(t *models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                 t.ID,
		LinkID:             utils.GetStringValue(t.LinkToken),
		PayerID:            t.PayerID,
		PayeeID:            t.PayeeID,
		GrossAmount:        t.GrossAmount.StringFixed(2),
		PlatformFee:        t.PlatformFee.StringFixed(2),
		PayeeEarnings:      t.PayeeEarnings.StringFixed(2),
		FeeRate:            t.FeeRate.String(),
		Currency:           t.Currency,
		ProcessorReference: utils.GetStringValue(t.ProcessorReference),
		Status:             t.Status,
		Message:            utils.GetStringValue(t.Message),
		Acknowledged:       t.Acknowledged,
		AcknowledgedAt:     t.AcknowledgedAt,
		CreatedAt:          t.CreatedAt.UTC(),
	}
}

func transactionList(txns []models.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, transactionResponse(&txns[i]))
	}
	return out
}

// requireActor returns the caller resolved by middleware.Auth or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.APIResponse{Success: false, Message: "Unauthorized"})
	}
	return actor, ok
}

func pageFromQuery(r *http.Request) services.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return services.Page{Page: page, Limit: limit}
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pagination(p services.Page, total int64) map[string]interface{} {
	p = p.Normalize()
	return map[string]interface{}{"page": p.Page, "limit": p.Limit, "total": total}
}
