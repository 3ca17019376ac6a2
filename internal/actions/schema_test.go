package actions

import (
	"strings"
	"testing"
)

func TestLookup(t *testing.T) {
	t.Parallel()
	for _, kind := range Kinds() {
		schema, ok := Lookup(kind)
		if !ok {
			t.Fatalf("Lookup(%s) not found", kind)
		}
		if len(schema.Required) == 0 {
			t.Errorf("%s: every kind declares at least one required field", kind)
		}
		for _, field := range append(append([]string{}, schema.Required...), schema.Optional...) {
			if _, ok := schema.FieldTypes[field]; !ok {
				t.Errorf("%s: field %q has no declared type", kind, field)
			}
		}
	}
	if _, ok := Lookup("no_such_kind"); ok {
		t.Error("Lookup should miss for unknown kinds")
	}
}

func TestRequiredOptionalDisjoint(t *testing.T) {
	t.Parallel()
	for _, kind := range Kinds() {
		schema, _ := Lookup(kind)
		req := map[string]struct{}{}
		for _, f := range schema.Required {
			req[f] = struct{}{}
		}
		for _, f := range schema.Optional {
			if _, clash := req[f]; clash {
				t.Errorf("%s: field %q is both required and optional", kind, f)
			}
		}
	}
}

func TestWhitelistBlocklistDisjoint(t *testing.T) {
	t.Parallel()
	for _, kind := range Kinds() {
		if IsBlocked(kind) {
			t.Errorf("kind %q is both allowed and blocked", kind)
		}
	}
}

func TestSchemaPrompt(t *testing.T) {
	t.Parallel()
	prompt := SchemaPrompt()
	for _, kind := range Kinds() {
		if !strings.Contains(prompt, string(kind)) {
			t.Errorf("prompt missing allowed kind %q", kind)
		}
	}
	for _, kind := range BlockedKinds() {
		if !strings.Contains(prompt, string(kind)) {
			t.Errorf("prompt missing blocked kind %q", kind)
		}
	}
	if !strings.Contains(prompt, "NEVER") {
		t.Error("prompt should spell out the deny list")
	}
}
