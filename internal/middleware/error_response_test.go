package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/recordgate/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidStatusError("pending"))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if body[key] == "" {
			t.Errorf("%s should not be empty", key)
		}
	}
	if body["code"] != model.ErrCodeInvalidStatus {
		t.Errorf("code = %q, want %q", body["code"], model.ErrCodeInvalidStatus)
	}
	if len(body) != 4 {
		t.Errorf("body has %d keys, want 4: %v", len(body), body)
	}
}

func TestStatusForAPIError(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewForbiddenError(model.RoleReviewer), http.StatusForbidden},
		{model.NewInvalidRequestError(), http.StatusBadRequest},
		{model.NewMissingFieldsError("email"), http.StatusBadRequest},
		{model.NewNoFileError(), http.StatusBadRequest},
		{model.NewInvalidStatusError("pending"), http.StatusBadRequest},
		{model.NewEmailInUseError(), http.StatusConflict},
		{model.NewFileTooLargeError(10), http.StatusRequestEntityTooLarge},
		{model.NewRecordNotFoundError("x"), http.StatusNotFound},
		{model.NewRateLimitedError(), http.StatusTooManyRequests},
		{model.NewStorageFailedError(), http.StatusInternalServerError},
		{model.NewInternalError(), http.StatusInternalServerError},
		{&model.APIError{Code: "SOMETHING_NEW"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := StatusForAPIError(tt.err); got != tt.want {
			t.Errorf("StatusForAPIError(%s) = %d, want %d", tt.err.Code, got, tt.want)
		}
	}
}

func TestWriteAPIError_UsesMappedStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAPIError(w, model.NewRecordNotFoundError("abc"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
