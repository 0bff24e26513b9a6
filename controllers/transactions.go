package controllers

import (
	"net/http"

	"paylink/services"
	"paylink/utils"

	"github.com/gorilla/mux"
)

type TransactionController struct {
	svc *services.Service
}

func NewTransactionController(svc *services.Service) *TransactionController {
	return &TransactionController{svc: svc}
}

// History lists the caller's transactions as payee or payer, newest first.
func (c *TransactionController) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pageFromQuery(r)
	txns, total, err := c.svc.ListTransactions(r.Context(), actor, page)
	if err != nil {
		utils.WriteError(w, "transactions/history", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"transactions": transactionList(txns),
			"pagination":   pagination(page, total),
		},
	})
}

func (c *TransactionController) Unacknowledged(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	txns, err := c.svc.ListUnacknowledged(r.Context(), actor)
	if err != nil {
		utils.WriteError(w, "transactions/unacknowledged", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    map[string]interface{}{"transactions": transactionList(txns)},
	})
}

func (c *TransactionController) Acknowledge(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		utils.WriteError(w, "transactions/acknowledge", services.ErrNotFound)
		return
	}
	txn, err := c.svc.Acknowledge(r.Context(), actor, id)
	if err != nil {
		utils.WriteError(w, "transactions/acknowledge", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Transaction acknowledged",
		Data:    transactionResponse(txn),
	})
}
