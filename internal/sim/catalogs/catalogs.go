// Package catalogs loads the block catalog used to validate block ids and
// block properties when scene primitives are constructed.
package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrUnknownBlock  = errors.New("catalogs: unknown block")
	ErrInvalidSchema = errors.New("catalogs: schema violation")
)

//go:embed data/blocks.json
var defaultBlocks []byte

//go:embed data/blocks.schema.json
var blocksSchema []byte

const blocksSchemaURL = "https://voxelforge.ai/schemas/blocks.schema.json"

type BlockCatalog struct {
	Palette       []string
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string

	aliases map[string]string
}

type BlockDef struct {
	ID         string                 `json:"id"`
	Aliases    []string               `json:"aliases,omitempty"`
	Properties map[string]PropertyDef `json:"properties,omitempty"`
}

type PropertyDef struct {
	// Values empty means any value is accepted.
	Values   []string `json:"values,omitempty"`
	Required bool     `json:"required,omitempty"`
	Default  string   `json:"default,omitempty"`
}

func (p PropertyDef) allows(v string) bool {
	if len(p.Values) == 0 {
		return true
	}
	for _, allowed := range p.Values {
		if allowed == v {
			return true
		}
	}
	return false
}

// PropertyError lists every problem found in one property map.
type PropertyError struct {
	Block   string
	Missing []string
	Unknown []string
	Invalid []string
}

func (e *PropertyError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown "+strings.Join(e.Unknown, ","))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ","))
	}
	return fmt.Sprintf("catalogs: %s: bad properties: %s", e.Block, strings.Join(parts, "; "))
}

var (
	defaultOnce sync.Once
	defaultCat  *BlockCatalog
	defaultErr  error
)

// Default returns the embedded catalog. The value is shared and must be
// treated as read-only.
func Default() (*BlockCatalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultBlocks)
	})
	return defaultCat, defaultErr
}

func Load(path string) (*BlockCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(blocksSchemaURL, bytes.NewReader(blocksSchema)); err != nil {
		return nil, err
	}
	return c.Compile(blocksSchemaURL)
}

// Parse validates raw against the blocks schema and builds the catalog.
func Parse(raw []byte) (*BlockCatalog, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("blocks schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("blocks.json: %w: %v", ErrInvalidSchema, err)
	}

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}

	out := &BlockCatalog{
		Defs:       make(map[string]BlockDef, len(defs)),
		aliases:    map[string]string{},
		DefsDigest: sha256Hex(raw),
	}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return nil, fmt.Errorf("blocks.json: duplicate id %q", d.ID)
		}
		out.Defs[d.ID] = d
	}
	for _, d := range defs {
		for _, a := range d.Aliases {
			if _, clash := out.Defs[a]; clash {
				return nil, fmt.Errorf("blocks.json: alias %q shadows a block id", a)
			}
			if prev, dup := out.aliases[a]; dup && prev != d.ID {
				return nil, fmt.Errorf("blocks.json: alias %q used by %s and %s", a, prev, d.ID)
			}
			out.aliases[a] = d.ID
		}
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// air is palette id 0 when present.
	if _, ok := out.Defs["air"]; ok {
		ids = append([]string{"air"}, filterOut(ids, "air")...)
	}
	out.Palette = ids
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return out, nil
}

// NormalizeAndValidate trims and lowercases id, drops a minecraft: namespace
// and resolves aliases. The result is a catalog id.
func (c *BlockCatalog) NormalizeAndValidate(id string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(id))
	n = strings.TrimPrefix(n, "minecraft:")
	if _, ok := c.Defs[n]; ok {
		return n, nil
	}
	if canon, ok := c.aliases[n]; ok {
		return canon, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBlock, id)
}

// ValidateProperties checks props against the definition of id. All problems
// are reported together as a *PropertyError.
func (c *BlockCatalog) ValidateProperties(id string, props map[string]string) error {
	canon, err := c.NormalizeAndValidate(id)
	if err != nil {
		return err
	}
	def := c.Defs[canon]
	pe := &PropertyError{Block: canon}
	for name, p := range def.Properties {
		if _, ok := props[name]; !ok && p.Required {
			pe.Missing = append(pe.Missing, name)
		}
	}
	for name, v := range props {
		p, ok := def.Properties[name]
		if !ok {
			pe.Unknown = append(pe.Unknown, name)
			continue
		}
		if !p.allows(v) {
			pe.Invalid = append(pe.Invalid, name+"="+v)
		}
	}
	if len(pe.Missing)+len(pe.Unknown)+len(pe.Invalid) == 0 {
		return nil
	}
	sort.Strings(pe.Missing)
	sort.Strings(pe.Unknown)
	sort.Strings(pe.Invalid)
	return pe
}

// RequiredProperties returns the sorted required property names of id.
func (c *BlockCatalog) RequiredProperties(id string) ([]string, error) {
	canon, err := c.NormalizeAndValidate(id)
	if err != nil {
		return nil, err
	}
	var out []string
	for name, p := range c.Defs[canon].Properties {
		if p.Required {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func filterOut(in []string, drop string) []string {
	out := in[:0]
	for _, s := range in {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
