package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"boekie.app/internal/access"
	"boekie.app/internal/obs"
)

func TestLogEvent(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = access.ContextWithPrincipal(ctx, access.Principal{
		UserID:    "a1",
		Role:      access.RoleAccountantEdit,
		Delegated: true,
	})
	ctx = access.ContextWithTenant(ctx, access.TenantContext{CompanyID: "u1"})

	if err := LogEvent(ctx, "grant.revoked", map[string]any{"company_id": "u1"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	line := buf.String()
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != "grant.revoked" {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "a1" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	if entry["delegated"] != true {
		t.Fatalf("expected delegated marker")
	}
	if entry["company_id"] != "u1" {
		t.Fatalf("unexpected company id: %v", entry["company_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["company_id"] != "u1" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}
