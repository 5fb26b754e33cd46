package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
)

func (h *Handler) createIntake(c *gin.Context) {
	var in console.NewIntake
	if err := controller.DecodeJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	req, err := h.svc.Intakes.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Created(c, gin.H{"id": req.ID, "status": req.Status})
}

func (h *Handler) listPublishedPosts(c *gin.Context) {
	posts, err := h.svc.Blog.List(c.Request.Context(), true)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, posts)
}

func (h *Handler) getPublishedPost(c *gin.Context) {
	post, err := h.svc.Blog.GetBySlug(c.Request.Context(), c.Param("slug"), true)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, post)
}

func (h *Handler) serveMedia(c *gin.Context) {
	ctx := c.Request.Context()
	key := strings.TrimPrefix(c.Param("key"), "/")

	if h.cfg.RedirectMedia {
		url, err := h.svc.Media.DownloadURL(ctx, key)
		if err != nil {
			h.fail(c, err)
			return
		}
		if url != "" {
			c.Redirect(http.StatusFound, url)
			return
		}
	}

	obj, err := h.svc.Media.Open(ctx, key)
	if err != nil {
		h.fail(c, err)
		return
	}
	if obj.ETag != "" {
		etag := `"` + strings.Trim(obj.ETag, `"`) + `"`
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, obj.Data)
}
