package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestClient_GetMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot123:abc/getMe" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"id": 42, "is_bot": true, "username": "mybot"},
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	me, err := c.GetMe(context.Background())
	if err != nil {
		t.Fatalf("GetMe: %v", err)
	}
	if me.Username != "mybot" || !me.IsBot {
		t.Fatalf("me = %+v", me)
	}
}

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ChatID != 7 || req.Text != "hello" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 99},
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 7, Text: "hello"})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageID != 99 {
		t.Fatalf("message = %+v", msg)
	}
}

func TestClient_AnswerCallbackQuery(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/answerCallbackQuery") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req AnswerCallbackQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.CallbackQueryID != "cb-42" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	if err := c.AnswerCallbackQuery(context.Background(), AnswerCallbackQueryRequest{CallbackQueryID: "cb-42"}); err != nil {
		t.Fatalf("AnswerCallbackQuery: %v", err)
	}
}

func TestClient_GetFileURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getFile") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"file_id": "f1", "file_path": "photos/p.jpg"},
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	url, err := c.GetFileURL(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFileURL: %v", err)
	}
	if want := srv.URL + "/file/bot123:abc/photos/p.jpg"; url != want {
		t.Fatalf("url = %q, want %q", url, want)
	}
}

func TestClient_GetFileURL_MissingPath(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"file_id": "f1"},
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	if _, err := c.GetFileURL(context.Background(), "f1"); err == nil {
		t.Fatal("expected error for missing file_path")
	}
}

func TestClient_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":          false,
			"error_code":  403,
			"description": "Forbidden: bot was blocked by the user",
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	_, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 7, Text: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != 403 {
		t.Fatalf("code = %d", apiErr.Code)
	}
}

func TestClient_RetryAfter(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": false, "error_code": 429,
				"parameters": map[string]any{"retry_after": 0},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 1},
		})
	}))
	defer srv.Close()

	c := NewClient("123:abc", srv.URL)
	if _, err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "x"}); err != nil {
		t.Fatalf("SendMessage after retry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}
