package service

import (
	"testing"
)

func TestActionCatalogNamesAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, def := range ActionCatalog() {
		if def.Name == "" {
			t.Error("every action needs a name")
		}
		if seen[def.Name] {
			t.Errorf("duplicate action name %q", def.Name)
		}
		seen[def.Name] = true
	}
}

func TestActionCatalogSchemas(t *testing.T) {
	for _, def := range ActionCatalog() {
		if def.Description == "" {
			t.Errorf("action %q has no description", def.Name)
		}
		typ, ok := def.Parameters["type"].(string)
		if !ok || typ != "object" {
			t.Errorf("action %q parameters must be an object schema", def.Name)
		}
		if _, ok := def.Parameters["properties"]; !ok {
			t.Errorf("action %q schema has no properties", def.Name)
		}
	}
}

func TestActionCatalogCoversCoreActions(t *testing.T) {
	names := make(map[string]bool)
	for _, def := range ActionCatalog() {
		names[def.Name] = true
	}
	for _, want := range []string{"navigate", "click", "fill", "press_enter", "scroll", "extract_text", "ui_summary", "screenshot"} {
		if !names[want] {
			t.Errorf("catalog is missing %q", want)
		}
	}
}
