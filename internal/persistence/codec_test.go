package persistence

import (
	"testing"
	"time"

	"github.com/petrijr/keycase/pkg/api"
)

func TestEncodeDecodeRunRecord(t *testing.T) {
	msg := "Cannot divide by zero"
	step := api.ID("3")
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rec := &api.RunRecord{
		RunID:     "42",
		ProjectID: "proj",
		PlanName:  "calc",
		Status:    api.RunFailed,
		CreatedAt: start,
		Result: &api.RunResult{
			RunID:         "42",
			StartDateTime: start,
			EndDateTime:   start.Add(time.Second),
			FlowResults: []api.FlowResult{
				{FlowID: "1", Name: "f", Status: api.FlowFailed, Message: &msg, FailedOnStepID: &step},
			},
		},
	}

	data, err := EncodeValue(rec)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	got, err := DecodeValue[*api.RunRecord](data)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}

	if got.RunID != "42" || got.Status != api.RunFailed || !got.CreatedAt.Equal(start) {
		t.Fatalf("unexpected record: %+v", got)
	}
	fr := got.Result.FlowResults[0]
	if *fr.Message != msg || *fr.FailedOnStepID != "3" {
		t.Fatalf("unexpected flow result: %+v", fr)
	}
}

func TestDecodeValueEmpty(t *testing.T) {
	got, err := DecodeValue[*api.RunRecord](nil)
	if err != nil || got != nil {
		t.Fatalf("expected nil record, got %+v err=%v", got, err)
	}

	data, err := EncodeValue(nil)
	if err != nil || data != nil {
		t.Fatalf("expected nil bytes, got %v err=%v", data, err)
	}
}
