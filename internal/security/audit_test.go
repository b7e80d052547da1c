package security

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAuditLogger_WritesJSONL(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	logger := NewAuditLogger(AuditLoggerConfig{
		Writer: &buf,
		Now:    func() time.Time { return fixedTime },
	})

	logger.Log(AuditEvent{
		Type:      EventAuthSuccess,
		AppID:     "mybot",
		SessionID: "sess-1",
		UserID:    "user-1",
		Detail:    "init data verified",
	})

	var got AuditEvent
	if err := json.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatalf("failed to decode JSONL: %v", err)
	}

	if got.Type != EventAuthSuccess {
		t.Errorf("type = %q, want %q", got.Type, EventAuthSuccess)
	}
	if got.AppID != "mybot" || got.SessionID != "sess-1" {
		t.Errorf("event = %+v", got)
	}
	if !got.Timestamp.Equal(fixedTime) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, fixedTime)
	}
}

func TestAuditLogger_RedactsDetail(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("my-secret-key")

	logger := NewAuditLogger(AuditLoggerConfig{
		Writer:   &buf,
		Redactor: r,
	})

	logger.Log(AuditEvent{
		Type:   EventWebhookRejected,
		Detail: "delivery signed with my-secret-key",
		Metadata: map[string]string{
			"header": "value is my-secret-key here",
		},
	})

	output := buf.String()
	if strings.Contains(output, "my-secret-key") {
		t.Errorf("secret found in audit output: %s", output)
	}
	if !strings.Contains(output, RedactPlaceholder) {
		t.Errorf("expected placeholder in audit output: %s", output)
	}
}

func TestAuditLogger_DoesNotMutateCallerMetadata(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger := NewAuditLogger(AuditLoggerConfig{Writer: &bytes.Buffer{}, Redactor: r})

	meta := map[string]string{"password": "hunter2"}
	logger.Log(AuditEvent{Type: EventAuthFailure, Metadata: meta})

	if meta["password"] != "hunter2" {
		t.Fatalf("caller metadata mutated: %v", meta)
	}
}

func TestAuditLogger_OnEventCallback(t *testing.T) {
	t.Parallel()

	var events []AuditEvent
	logger := NewAuditLogger(AuditLoggerConfig{
		OnEvent: func(e AuditEvent) {
			events = append(events, e)
		},
	})

	logger.Log(AuditEvent{Type: EventAuthSuccess, UserID: "user-1"})
	logger.Log(AuditEvent{Type: EventAuthFailure, XID: "777000"})

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventAuthSuccess {
		t.Errorf("events[0].type = %q, want %q", events[0].Type, EventAuthSuccess)
	}
	if events[1].Type != EventAuthFailure {
		t.Errorf("events[1].type = %q, want %q", events[1].Type, EventAuthFailure)
	}
}

func TestAuditLogger_AllEventTypes(t *testing.T) {
	t.Parallel()

	types := []EventType{
		EventAuthSuccess, EventAuthFailure, EventWebhookRejected,
		EventIntentCreated, EventIntentCompleted, EventIntentMisuse,
		EventAccountLinked, EventConfigChange, EventRateLimit,
	}

	var buf bytes.Buffer
	logger := NewAuditLogger(AuditLoggerConfig{Writer: &buf})

	for _, et := range types {
		logger.Log(AuditEvent{Type: et})
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(types) {
		t.Fatalf("got %d lines, want %d", len(lines), len(types))
	}
}

func TestAuditLogger_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewAuditLogger(AuditLoggerConfig{Writer: &buf})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEvent{Type: EventIntentCreated, Detail: "concurrent"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Fatalf("got %d lines, want 50", len(lines))
	}
}

func TestAuditLogger_NilWriter(t *testing.T) {
	t.Parallel()

	var called bool
	logger := NewAuditLogger(AuditLoggerConfig{
		OnEvent: func(_ AuditEvent) { called = true },
	})

	// Must not panic with a nil writer.
	logger.Log(AuditEvent{Type: EventRateLimit})

	if !called {
		t.Error("expected OnEvent to be called even with nil writer")
	}
}
