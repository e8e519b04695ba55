package syncer

import (
	"encoding/json"
	"testing"

	"lg/fitai-go-api/internal/model"
)

func TestMergeLocalWins(t *testing.T) {
	local := model.Document{Revision: "local", Payload: json.RawMessage(`{"a":1,"b":"local"}`)}

	tests := []struct {
		name       string
		remote     string
		wantMerged bool
		want       map[string]any
	}{
		{"remote subset", `{"a":2}`, false, map[string]any{"a": 1.0, "b": "local"}},
		{"remote extra key", `{"b":"remote","c":true}`, true, map[string]any{"a": 1.0, "b": "local", "c": true}},
		{"unreadable remote", `not json`, false, map[string]any{"a": 1.0, "b": "local"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := model.Document{Revision: "remote", Payload: json.RawMessage(tt.remote)}
			got, merged, err := mergeLocalWins(local, remote)
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			if merged != tt.wantMerged {
				t.Errorf("merged = %v, want %v", merged, tt.wantMerged)
			}
			if got.Revision != "local" {
				t.Errorf("revision = %s, want local", got.Revision)
			}
			var payload map[string]any
			if err := json.Unmarshal(got.Payload, &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(payload) != len(tt.want) {
				t.Fatalf("payload = %v, want %v", payload, tt.want)
			}
			for k, v := range tt.want {
				if payload[k] != v {
					t.Errorf("%s = %v, want %v", k, payload[k], v)
				}
			}
		})
	}
}

func TestMergeLocalWins_BadLocal(t *testing.T) {
	local := model.Document{Payload: json.RawMessage(`[1,2]`)}
	if _, _, err := mergeLocalWins(local, model.Document{Payload: json.RawMessage(`{}`)}); err == nil {
		t.Error("expected an error for a non-object local payload")
	}
}
