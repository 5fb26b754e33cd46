package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var in loginRequest
	if err := controller.BindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	session, err := h.svc.Auth.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, session)
}

func (h *Handler) dashboard(c *gin.Context) {
	summary, err := h.svc.Dashboard.Summary(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, summary)
}

func (h *Handler) getSMTP(c *gin.Context) {
	view, err := h.svc.SMTP.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, view)
}

func (h *Handler) updateSMTP(c *gin.Context) {
	var in console.SMTPUpdate
	if err := controller.DecodeJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	view, err := h.svc.SMTP.Update(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, view)
}

type testMailRequest struct {
	To string `json:"to" validate:"required"`
}

func (h *Handler) testSMTP(c *gin.Context) {
	var in testMailRequest
	if err := controller.BindJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.SMTP.SendTest(c.Request.Context(), in.To); err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, gin.H{"sent": true, "to": in.To})
}

func (h *Handler) listMedia(c *gin.Context) {
	objects, err := h.svc.Media.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, objects)
}
