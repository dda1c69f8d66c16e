package aliases

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults_ResolveVariants(t *testing.T) {
	tbl := Defaults()
	if tbl.Len() != 10 {
		t.Fatalf("defaults len=%d want 10", tbl.Len())
	}
	got, ok := tbl.Resolve("minecraft:redstone_wire")
	if !ok || got != "minecraft:redstone" {
		t.Fatalf("redstone_wire -> %q,%v", got, ok)
	}
	if _, ok := tbl.Resolve("minecraft:stone"); ok {
		t.Fatalf("stone should not be aliased")
	}
	if tbl.Digest() == "" {
		t.Fatalf("expected digest")
	}
}

func TestNilTable(t *testing.T) {
	var tbl *Table
	if _, ok := tbl.Resolve("minecraft:tripwire"); ok {
		t.Fatalf("nil table must not resolve")
	}
	if tbl.Len() != 0 || tbl.Digest() != "" || tbl.Keys() != nil {
		t.Fatalf("nil table accessors should be zero")
	}
}

func TestNew_CopiesInput(t *testing.T) {
	m := map[string]string{"mod:a": "mod:b", " ": "mod:c"}
	tbl := New(m)
	m["mod:a"] = "mod:z"
	if got, _ := tbl.Resolve("mod:a"); got != "mod:b" {
		t.Fatalf("table aliased caller map: %q", got)
	}
	if tbl.Len() != 1 {
		t.Fatalf("blank key should be dropped, len=%d", tbl.Len())
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "aliases.json")
	raw := `{"version":1,"aliases":{"minecraft:lit_furnace":"minecraft:furnace","mymod:glowing_lamp":"mymod:lamp"}}`
	if err := os.WriteFile(p, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tbl, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, ok := tbl.Resolve("mymod:glowing_lamp"); !ok || got != "mymod:lamp" {
		t.Fatalf("resolve -> %q,%v", got, ok)
	}
	keys := tbl.Keys()
	if len(keys) != 2 || keys[0] != "minecraft:lit_furnace" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	bad := []string{
		`{}`,
		`{"aliases":{"no_namespace":"minecraft:stone"}}`,
		`{"aliases":{"minecraft:stone":42}}`,
		`{"aliases":{},"extra":true}`,
		`not json`,
	}
	for _, raw := range bad {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
