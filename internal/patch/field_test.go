package patch

import (
	"encoding/json"
	"testing"
)

type movePayload struct {
	Name        Field[string] `json:"name"`
	Description Field[string] `json:"description"`
	Order       Field[int]    `json:"order"`
}

func TestFieldTracksPresence(t *testing.T) {
	var payload movePayload
	if err := json.Unmarshal([]byte(`{"name":"Pirouette","description":null}`), &payload); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if name, ok := payload.Name.Get(); !ok || name != "Pirouette" {
		t.Fatalf("expected name to be set, got %q (%v)", name, ok)
	}
	if !payload.Description.IsSet() || payload.Description.Value() != "" {
		t.Fatalf("expected explicit null to be set with zero value")
	}
	if payload.Order.IsSet() {
		t.Fatalf("expected absent key to stay unset")
	}
}

func TestFieldRejectsMismatchedTypes(t *testing.T) {
	var payload movePayload
	if err := json.Unmarshal([]byte(`{"order":"first"}`), &payload); err == nil {
		t.Fatalf("expected decode error for string order")
	}
}

func TestFieldConstructors(t *testing.T) {
	if Unset[string]().IsSet() {
		t.Fatalf("unset field reported present")
	}
	field := Set(3)
	if value, ok := field.Get(); !ok || value != 3 {
		t.Fatalf("unexpected set field %v %v", value, ok)
	}
	encoded, err := json.Marshal(struct {
		A Field[int] `json:"a"`
		B Field[int] `json:"b"`
	}{A: Set(7)})
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if string(encoded) != `{"a":7,"b":null}` {
		t.Fatalf("unexpected encoding %s", encoded)
	}
}
