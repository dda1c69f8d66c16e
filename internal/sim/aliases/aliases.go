// Package aliases maps block ids as they appear in the world to the item ids
// that place them. A Table is built once at startup and never mutated.
package aliases

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "https://patternbuilder.ai/schemas/aliases.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

type Table struct {
	m      map[string]string
	digest string
}

type fileV1 struct {
	Version int               `json:"version,omitempty"`
	Aliases map[string]string `json:"aliases"`
}

// New copies m into a Table. Empty keys or values are dropped.
func New(m map[string]string) *Table {
	t := &Table{m: make(map[string]string, len(m))}
	for k, v := range m {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		t.m[k] = v
	}
	b, _ := json.Marshal(fileV1{Version: 1, Aliases: t.m})
	t.digest = sha256Hex(b)
	return t
}

// Defaults returns the variant-state aliases for vanilla redstone and
// utility blocks.
func Defaults() *Table {
	return New(map[string]string{
		"minecraft:redstone_wire":        "minecraft:redstone",
		"minecraft:powered_repeater":     "minecraft:repeater",
		"minecraft:unpowered_repeater":   "minecraft:repeater",
		"minecraft:powered_comparator":   "minecraft:comparator",
		"minecraft:unpowered_comparator": "minecraft:comparator",
		"minecraft:lit_redstone_ore":     "minecraft:redstone_ore",
		"minecraft:tripwire":             "minecraft:string",
		"minecraft:wall_sign":            "minecraft:sign",
		"minecraft:standing_sign":        "minecraft:sign",
		"minecraft:lit_furnace":          "minecraft:furnace",
	})
}

// Load reads an alias file. A missing file is reported as an os.IsNotExist
// error so callers can fall back to Defaults.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse validates raw against the alias schema and builds a Table. The digest
// is taken over the raw bytes.
func Parse(raw []byte) (*Table, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	var f fileV1
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	t := New(f.Aliases)
	t.digest = sha256Hex(raw)
	return t, nil
}

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Resolve returns the canonical item id for a world-visible block id.
func (t *Table) Resolve(worldType string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.m[worldType]
	return v, ok
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.m)
}

func (t *Table) Digest() string {
	if t == nil {
		return ""
	}
	return t.digest
}

// Keys returns the aliased world ids in sorted order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON writes the table in the on-disk format.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	return json.Marshal(fileV1{Version: 1, Aliases: t.m})
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
