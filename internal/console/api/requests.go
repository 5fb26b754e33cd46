package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
	"github.com/lexintake/console/pkg/repository"
)

func (h *Handler) listIntakes(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		h.fail(c, err)
		return
	}
	size, err := queryInt(c, "size")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := console.IntakeFilter{
		Status: console.IntakeStatus(c.Query("status")),
		Page:   repository.Pagination{Page: page, PageSize: size}.Normalize(),
	}
	items, total, err := h.svc.Intakes.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Page(c, items, controller.PageMeta{Page: filter.Page.Page, Size: filter.Page.PageSize, Total: total})
}

func (h *Handler) getIntake(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	req, err := h.svc.Intakes.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, req)
}

func (h *Handler) deleteIntake(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Intakes.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	controller.NoContent(c)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateIntakeStatus(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in statusRequest
	if err := controller.BindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	req, err := h.svc.Intakes.UpdateStatus(c.Request.Context(), id, console.IntakeStatus(in.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, req)
}

type assignRequest struct {
	AttorneyID uuid.UUID `json:"attorney_id" validate:"required"`
}

func (h *Handler) assignIntake(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in assignRequest
	if err := controller.BindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	req, err := h.svc.Intakes.Assign(c.Request.Context(), id, in.AttorneyID)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, req)
}
