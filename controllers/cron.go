package controllers

import (
	"net/http"

	"paylink/services"
	"paylink/utils"
)

// CronController exposes scheduler-driven maintenance. Routes are guarded by
// middleware.RequireCronKey.
type CronController struct {
	svc *services.Service
}

func NewCronController(svc *services.Service) *CronController {
	return &CronController{svc: svc}
}

// ExpiredLinks flips active links past their expiry to expired.
func (c *CronController) ExpiredLinks(w http.ResponseWriter, r *http.Request) {
	n, err := c.svc.SweepExpired(r.Context(), c.svc.Now())
	if err != nil {
		utils.WriteError(w, "cron/expired-links", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "Cron executed", Data: map[string]interface{}{"processed": n}})
}
