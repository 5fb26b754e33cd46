package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/controller"
)

type (
	attorneyAction func(ctx context.Context, id uuid.UUID) (*console.Attorney, error)
	postAction     func(ctx context.Context, id uuid.UUID) (*console.Post, error)
)

// multipartOverhead is allowed on top of the image limit for form boundaries and headers.
const multipartOverhead = 64 << 10

// readUpload reads an image from the "file" field of a multipart form, or from the
// raw request body for any other content type.
func (h *Handler) readUpload(c *gin.Context) ([]byte, error) {
	limit := h.svc.Media.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
	var src io.Reader = c.Request.Body
	if strings.HasPrefix(mediaType, "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, uploadErr(err, "form field \"file\" is required")
		}
		f, err := header.Open()
		if err != nil {
			return nil, uploadErr(err, "uploaded file could not be read")
		}
		defer f.Close()
		src = f
	}

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, uploadErr(err, "uploaded file could not be read")
	}
	if int64(len(data)) > limit {
		return nil, tooLarge()
	}
	return data, nil
}

func uploadErr(err error, message string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return tooLarge()
	}
	return controller.NewValidationError(message, nil)
}

func tooLarge() error {
	return &controller.AppError{
		Code:       "validation.file_too_large",
		Message:    "file exceeds the upload size limit",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}
