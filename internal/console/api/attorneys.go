package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
)

func (h *Handler) listAttorneys(c *gin.Context) {
	attorneys, err := h.svc.Attorneys.List(c.Request.Context(), console.AttorneyStatus(c.Query("status")))
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, attorneys)
}

func (h *Handler) onboardAttorney(c *gin.Context) {
	var in console.NewAttorney
	if err := controller.DecodeJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.svc.Attorneys.Onboard(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Created(c, a)
}

func (h *Handler) getAttorney(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.svc.Attorneys.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, a)
}

func (h *Handler) activateAttorney(c *gin.Context) {
	h.attorneyTransition(c, h.svc.Attorneys.Activate)
}

func (h *Handler) suspendAttorney(c *gin.Context) {
	h.attorneyTransition(c, h.svc.Attorneys.Suspend)
}

func (h *Handler) attorneyTransition(c *gin.Context, apply attorneyAction) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := apply(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, a)
}

func (h *Handler) uploadAttorneyPhoto(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := h.readUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	a, err := h.svc.Attorneys.UploadPhoto(c.Request.Context(), id, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, a)
}
