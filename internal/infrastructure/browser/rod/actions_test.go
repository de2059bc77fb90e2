package rod

import (
	"context"
	"strings"
	"testing"

	"browser-agent/internal/domain/entity"
)

func TestParseArgs_ValidJSON(t *testing.T) {
	action := entity.Action{Name: "navigate", Arguments: `{"url": "https://example.com"}`}

	var args navigateArgs
	if err := parseArgs(action, &args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if args.URL != "https://example.com" {
		t.Errorf("expected url to be parsed, got %q", args.URL)
	}
}

func TestParseArgs_EmptyArgumentsTreatedAsObject(t *testing.T) {
	for _, raw := range []string{"", "   ", "{}"} {
		action := entity.Action{Name: "press_enter", Arguments: raw}

		var args struct{}
		if err := parseArgs(action, &args); err != nil {
			t.Errorf("arguments %q should parse as empty object, got %v", raw, err)
		}
	}
}

func TestParseArgs_InvalidJSON(t *testing.T) {
	action := entity.Action{Name: "click", Arguments: `{"selector": }`}

	var args clickArgs
	err := parseArgs(action, &args)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "click") {
		t.Errorf("error must name the action, got: %v", err)
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	s := &Session{}

	_, err := s.dispatch(context.Background(), entity.Action{Name: "teleport", Arguments: "{}"})
	if err == nil {
		t.Fatal("expected an error for an unknown action")
	}
	if !strings.Contains(err.Error(), "teleport") {
		t.Errorf("error must name the unknown action, got: %v", err)
	}
}
