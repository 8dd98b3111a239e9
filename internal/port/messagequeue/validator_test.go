package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidTurnLogged(t *testing.T) {
	data := []byte(`{"turn_id":"t1","conversation_id":"c1","key":"conversation_logs/t1.json","generation_failed":false,"timestamp":"2025-01-01T00:00:00Z"}`)
	if err := Validate(SubjectTurnLogged, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidTurnFeedback(t *testing.T) {
	data := []byte(`{"turn_id":"t1","conversation_id":"c1","feedback_type":"like","confidence":"0.900"}`)
	if err := Validate(SubjectTurnFeedback, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectTurnLogged, []byte("not-json"))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	data := []byte(`{"turn_id":42}`)
	err := Validate(SubjectTurnFeedback, data)
	if err == nil {
		t.Fatal("expected schema error")
	}
	if !strings.Contains(err.Error(), "schema validation failed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("other.subject", []byte(`{"anything":1}`)); err != nil {
		t.Fatalf("unknown subjects should pass, got %v", err)
	}
}

func TestValidateDLQSubject(t *testing.T) {
	if err := Validate(DLQSubject(SubjectTurnLogged), []byte(`{"turn_id":1}`)); err != nil {
		t.Fatalf("dlq subjects should accept any JSON, got %v", err)
	}
}
