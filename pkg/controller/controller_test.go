package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/observability/logger"
)

func TestMapError(t *testing.T) {
	ctx := logger.ContextWithRequestID(context.Background(), "req-42")

	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantCategory string
		wantMessage  string
	}{
		{
			name:         "plain error is opaque",
			err:          errors.New("pq: connection refused"),
			wantStatus:   http.StatusInternalServerError,
			wantCategory: "internal_server_error",
			wantMessage:  "an unexpected error occurred",
		},
		{
			name:         "validation",
			err:          NewValidationError("title is required", nil),
			wantStatus:   http.StatusBadRequest,
			wantCategory: "validation_error",
			wantMessage:  "title is required",
		},
		{
			name:         "wrapped not found",
			err:          fmt.Errorf("load post: %w", NewNotFoundError("post not found")),
			wantStatus:   http.StatusNotFound,
			wantCategory: "not_found",
			wantMessage:  "post not found",
		},
		{
			name:         "conflict",
			err:          NewConflictError("slug already in use"),
			wantStatus:   http.StatusConflict,
			wantCategory: "conflict",
			wantMessage:  "slug already in use",
		},
		{
			name:         "storage unavailable",
			err:          NewUnavailableError("storage.unavailable", "storage backend unavailable", errors.New("no bucket")),
			wantStatus:   http.StatusServiceUnavailable,
			wantCategory: "storage_unavailable",
			wantMessage:  "storage backend unavailable",
		},
		{
			name:         "status inferred from code",
			err:          NewError("auth.unauthorized", "bad credentials", nil),
			wantStatus:   http.StatusUnauthorized,
			wantCategory: "unauthorized",
			wantMessage:  "bad credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := MapError(ctx, tt.err)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if body.Error != tt.wantCategory {
				t.Errorf("category = %q, want %q", body.Error, tt.wantCategory)
			}
			if body.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMessage)
			}
			if body.RequestID != "req-42" {
				t.Errorf("request id = %q", body.RequestID)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewInternalError("store failed", cause)
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable with errors.Is")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("error string lacks cause: %q", err.Error())
	}
}

func newContext(method, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req.WithContext(logger.ContextWithRequestID(req.Context(), "req-1"))
	return c, rec
}

func TestResponses(t *testing.T) {
	c, rec := newContext(http.MethodGet, "")
	Success(c, map[string]int{"n": 1})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"data":{"n":1}`) ||
		!strings.Contains(rec.Body.String(), `"request_id":"req-1"`) {
		t.Fatalf("unexpected success response %d %s", rec.Code, rec.Body.String())
	}

	c, rec = newContext(http.MethodGet, "")
	Page(c, []string{"a"}, PageMeta{Page: 2, Size: 1, Total: 5})
	if !strings.Contains(rec.Body.String(), `"meta":{"page":2,"size":1,"total":5}`) {
		t.Fatalf("unexpected page response %s", rec.Body.String())
	}

	c, rec = newContext(http.MethodPost, "")
	Created(c, "x")
	if rec.Code != http.StatusCreated {
		t.Fatalf("created status = %d", rec.Code)
	}

	c, rec = newContext(http.MethodDelete, "")
	NoContent(c)
	c.Writer.WriteHeaderNow()
	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("unexpected no-content response %d %q", rec.Code, rec.Body.String())
	}
}

func TestError_AbortsAndRecords(t *testing.T) {
	c, rec := newContext(http.MethodGet, "")
	Error(c, NewNotFoundError("request not found"))

	if !c.IsAborted() {
		t.Fatal("context not aborted")
	}
	if len(c.Errors) != 1 {
		t.Fatalf("gin errors = %d, want 1", len(c.Errors))
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || body.Code != "resource.not_found" || body.RequestID != "req-1" {
		t.Fatalf("unexpected error response %d %+v", rec.Code, body)
	}
}

type createPost struct {
	Title string `json:"title" validate:"required"`
	Body  string `json:"body"`
}

type loginRequest struct {
	Username string `json:"username"`
}

func (l loginRequest) Validate() error {
	if l.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		dto     any
		wantErr string
	}{
		{name: "valid tagged", body: `{"title":"Hello"}`, dto: &createPost{}},
		{name: "missing required", body: `{"body":"x"}`, dto: &createPost{}, wantErr: "validation failed"},
		{name: "empty body", body: ``, dto: &createPost{}, wantErr: "request body is required"},
		{name: "malformed", body: `{"title":`, dto: &createPost{}, wantErr: "request body is not valid JSON"},
		{name: "validator ok", body: `{"username":"admin"}`, dto: &loginRequest{}},
		{name: "validator fails", body: `{}`, dto: &loginRequest{}, wantErr: "username is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(http.MethodPost, tt.body)
			err := BindJSON(c, tt.dto)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *AppError, got %v", err)
			}
			if appErr.Message != tt.wantErr || appErr.HTTPStatus != http.StatusBadRequest {
				t.Fatalf("got %q/%d, want %q/400", appErr.Message, appErr.HTTPStatus, tt.wantErr)
			}
		})
	}
}

func TestValidateDTO_Nil(t *testing.T) {
	var p *createPost
	if err := ValidateDTO(p); err == nil {
		t.Fatal("nil pointer accepted")
	}
	if err := ValidateDTO(nil); err == nil {
		t.Fatal("nil accepted")
	}
}

func TestValidateDTO_RequiredFieldName(t *testing.T) {
	err := ValidateDTO(createPost{})
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %v", err)
	}
	problems, _ := appErr.Details["errors"].([]string)
	if len(problems) != 1 || problems[0] != "field 'title' is required" {
		t.Fatalf("unexpected problems %v", problems)
	}
}
