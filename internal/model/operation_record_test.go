package model

import (
	"encoding/json"
	"testing"
)

func TestOperationRecordRejectsUnknownFields(t *testing.T) {
	var record OperationRecord
	err := json.Unmarshal([]byte(`{"kind":"swap_base_in","caller":"0x01","amount":"10","slack_bp":100}`), &record)
	if err == nil {
		t.Fatalf("expected unknown field error, got %+v", record)
	}

	raw := `{"kind":"swap_base_in","caller":"0x01","amount":"10","in_min":"5","slack_bps":100}`
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record.Kind != "swap_base_in" || record.SlackBps != 100 || !record.HasExplicitBounds() {
		t.Fatalf("unexpected record: %+v", record)
	}
}
