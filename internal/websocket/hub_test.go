package websocket

import (
	"testing"

	"github.com/collabkit/server/internal/collab"
)

func TestDecodeDraft(t *testing.T) {
	tests := []struct {
		name  string
		raw   interface{}
		valid bool
	}{
		{
			name: "insert with index",
			raw: map[string]interface{}{
				"type":  "insert",
				"path":  []interface{}{"items"},
				"value": map[string]interface{}{"index": float64(0), "item": "x"},
			},
			valid: true,
		},
		{
			name: "update",
			raw: map[string]interface{}{
				"type":  "update",
				"path":  []interface{}{"title"},
				"value": "draft",
			},
			valid: true,
		},
		{
			name: "move",
			raw: map[string]interface{}{
				"type":  "move",
				"path":  []interface{}{"items"},
				"value": map[string]interface{}{"from": float64(0), "to": float64(1)},
			},
			valid: true,
		},
		{
			name:  "not a map",
			raw:   "insert",
			valid: false,
		},
		{
			name: "unknown type",
			raw: map[string]interface{}{
				"type": "transmute",
				"path": []interface{}{"items"},
			},
			valid: false,
		},
		{
			name: "missing path",
			raw: map[string]interface{}{
				"type": "delete",
			},
			valid: false,
		},
		{
			name: "non-string path segment",
			raw: map[string]interface{}{
				"type": "delete",
				"path": []interface{}{"items", float64(3)},
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft, ok := decodeDraft(tt.raw)
			if ok != tt.valid {
				t.Fatalf("decodeDraft() ok = %v, want %v", ok, tt.valid)
			}
			if !tt.valid {
				return
			}
			if draft.Type == "" || len(draft.Path) == 0 {
				t.Errorf("decodeDraft() returned incomplete draft: %+v", draft)
			}
		})
	}
}

func TestDecodeDraftPreservesValues(t *testing.T) {
	draft, ok := decodeDraft(map[string]interface{}{
		"type":  "insert",
		"path":  []interface{}{"sections", "0", "items"},
		"value": map[string]interface{}{"index": float64(2), "item": "y"},
	})
	if !ok {
		t.Fatal("decodeDraft() failed on valid operation")
	}
	if draft.Type != collab.OpInsert {
		t.Errorf("Type = %q, want insert", draft.Type)
	}
	if len(draft.Path) != 3 || draft.Path[2] != "items" {
		t.Errorf("Path = %v", draft.Path)
	}
	value, ok := draft.Value.(map[string]interface{})
	if !ok || value["item"] != "y" {
		t.Errorf("Value = %v", draft.Value)
	}
}
