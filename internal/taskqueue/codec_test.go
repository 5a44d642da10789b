package taskqueue

import (
	"testing"
	"time"
)

func TestEncodeDecodeTask(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	in := Task{
		ID:         "task-1",
		Type:       TaskTypeExecutePlan,
		RunID:      "123",
		ProjectID:  "local",
		Payload:    []byte(`{"name":"calc"}`),
		EnqueuedAt: now,
	}

	data, err := EncodeTask(in)
	if err != nil {
		t.Fatalf("EncodeTask failed: %v", err)
	}

	out, err := DecodeTask(data)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}

	if out.ID != in.ID || out.Type != in.Type || out.RunID != in.RunID || out.ProjectID != in.ProjectID {
		t.Fatalf("unexpected task: %+v", out)
	}
	if string(out.Payload) != string(in.Payload) {
		t.Fatalf("payload mismatch: %s", out.Payload)
	}
	if !out.EnqueuedAt.Equal(now) {
		t.Fatalf("EnqueuedAt mismatch: %v vs %v", out.EnqueuedAt, now)
	}
}

func TestDecodeTaskInvalid(t *testing.T) {
	if _, err := DecodeTask([]byte("not json")); err == nil {
		t.Fatalf("expected error for invalid payload")
	}
}
