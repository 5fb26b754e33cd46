package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
)

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.svc.Blog.List(c.Request.Context(), c.Query("published") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, posts)
}

func (h *Handler) createPost(c *gin.Context) {
	var in console.PostInput
	if err := controller.DecodeJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	post, err := h.svc.Blog.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Created(c, post)
}

func (h *Handler) getPost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	post, err := h.svc.Blog.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, post)
}

func (h *Handler) updatePost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var in console.PostInput
	if err := controller.DecodeJSON(c, &in); err != nil {
		h.fail(c, err)
		return
	}
	post, err := h.svc.Blog.Update(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, post)
}

func (h *Handler) deletePost(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.Blog.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	controller.NoContent(c)
}

func (h *Handler) publishPost(c *gin.Context) {
	h.postTransition(c, h.svc.Blog.Publish)
}

func (h *Handler) unpublishPost(c *gin.Context) {
	h.postTransition(c, h.svc.Blog.Unpublish)
}

func (h *Handler) postTransition(c *gin.Context, apply postAction) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	post, err := apply(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, post)
}

func (h *Handler) uploadPostCover(c *gin.Context) {
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
	post, err := h.svc.Blog.UploadCover(c.Request.Context(), id, data)
	if err != nil {
		h.fail(c, err)
		return
	}
	controller.Success(c, post)
}
