package controllers

import (
	"net/http"

	"paylink/middleware"
	"paylink/services"
	"paylink/utils"

	"github.com/gorilla/mux"
)

// PayController serves the payer side of a link.
type PayController struct {
	svc      *services.Service
	checkout *services.Checkout
}

func NewPayController(svc *services.Service, checkout *services.Checkout) *PayController {
	return &PayController{svc: svc, checkout: checkout}
}

type checkoutRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,max=255"`
}

// Fetch resolves a presented token for the caller. It never changes the link.
func (c *PayController) Fetch(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	token := mux.Vars(r)["token"]
	auth, link, err := c.svc.AttemptRedeem(r.Context(), token, actor)
	if err != nil {
		utils.WriteError(w, "pay/fetch", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"link":             linkResponse(link, "", false, false),
			"authorization_id": auth.ID,
		},
	})
}

// Checkout charges the caller for the link and records the payment.
func (c *PayController) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req checkoutRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}
	txn, err := c.checkout.Redeem(r.Context(), actor, mux.Vars(r)["token"], req.PaymentMethod)
	if err != nil {
		utils.WriteError(w, "pay/checkout", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Payment completed",
		Data:    transactionResponse(txn),
	})
}
