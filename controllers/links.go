package controllers

import (
	"net/http"
	"strings"

	"paylink/middleware"
	"paylink/services"
	"paylink/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// LinkController serves the issuer side: create, list, detail, disable, delete.
type LinkController struct {
	svc *services.Service
}

func NewLinkController(svc *services.Service) *LinkController {
	return &LinkController{svc: svc}
}

type createLinkRequest struct {
	ServiceName    string          `json:"service_name" validate:"required,max=191"`
	Amount         decimal.Decimal `json:"amount"`
	Description    *string         `json:"description" validate:"max=2000"`
	ExpiresInHours int             `json:"expires_in_hours"`
	ClientEmail    string          `json:"client_email" validate:"required,email"`
	ClientName     *string         `json:"client_name" validate:"max=191"`
}

type updateLinkStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=disabled"`
}

// Create issues a new link and returns it with its shareable URL.
func (c *LinkController) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createLinkRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	link, err := c.svc.CreateLink(r.Context(), actor, services.CreateLinkInput{
		ServiceName:    req.ServiceName,
		Amount:         req.Amount,
		Description:    req.Description,
		ExpiresInHours: req.ExpiresInHours,
		ClientEmail:    req.ClientEmail,
		ClientName:     req.ClientName,
	})
	if err != nil {
		utils.WriteError(w, "links/create", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.APIResponse{
		Success: true,
		Message: "Payment link created",
		Data:    linkResponse(link, c.svc.SecureURL(link.Token), false, false),
	})
}

// List pages through the caller's links. Query: page, limit, status.
func (c *LinkController) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page := pageFromQuery(r)
	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))

	views, total, err := c.svc.ListLinks(r.Context(), actor, status, page)
	if err != nil {
		utils.WriteError(w, "links/list", err)
		return
	}
	items := make([]LinkResponse, 0, len(views))
	for i := range views {
		v := &views[i]
		items = append(items, linkResponse(&v.PaymentLink, c.svc.SecureURL(v.Token), v.IsPaid, v.IsExpired))
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data: map[string]interface{}{
			"links":      items,
			"pagination": pagination(page, total),
		},
	})
}

func (c *LinkController) Detail(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		utils.WriteError(w, "links/detail", services.ErrNotFound)
		return
	}
	view, err := c.svc.GetLink(r.Context(), actor, id)
	if err != nil {
		utils.WriteError(w, "links/detail", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Successfully",
		Data:    linkResponse(&view.PaymentLink, c.svc.SecureURL(view.Token), view.IsPaid, view.IsExpired),
	})
}

// UpdateStatus only supports moving a link to "disabled".
func (c *LinkController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		utils.WriteError(w, "links/status", services.ErrNotFound)
		return
	}
	var req updateLinkStatusRequest
	if err := middleware.ValidateJSON(w, r, &req); err != nil {
		return
	}

	link, err := c.svc.Disable(r.Context(), actor, id)
	if err != nil {
		utils.WriteError(w, "links/status", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "Payment link disabled",
		Data:    linkResponse(link, c.svc.SecureURL(link.Token), false, link.IsExpiredAt(c.svc.Now())),
	})
}

func (c *LinkController) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := parseID(mux.Vars(r)["id"])
	if !ok {
		utils.WriteError(w, "links/delete", services.ErrNotFound)
		return
	}
	if err := c.svc.Delete(r.Context(), actor, id); err != nil {
		utils.WriteError(w, "links/delete", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Payment link deleted"})
}
