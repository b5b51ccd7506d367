package scene

import (
	"fmt"
	"sort"
)

// Catalog validates block ids and property maps. It is read-only and shared
// by every block built from it.
type Catalog interface {
	NormalizeAndValidate(id string) (string, error)
	ValidateProperties(id string, props map[string]string) error
}

// Properties is a blockstate map. Iterate with Keys for a stable order.
type Properties map[string]string

func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) Clone() Properties {
	if len(p) == 0 {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Block is a solid or hollow cuboid of one block type.
type Block struct {
	node
	cat   Catalog
	id    string
	size  Size
	props Properties
	fill  bool
}

type BlockOption func(*Block)

func WithProperties(p map[string]string) BlockOption {
	return func(b *Block) { b.props = Properties(p).Clone() }
}

// Hollow makes the block a one-cell-thick shell.
func Hollow() BlockOption {
	return func(b *Block) { b.fill = false }
}

func At(x, y, z int) BlockOption {
	return func(b *Block) { b.pos = Vector3{x, y, z} }
}

// NewBlock validates id and properties against cat once, here. A bad id or
// a missing required property fails construction.
func NewBlock(cat Catalog, id string, size Size, opts ...BlockOption) (*Block, error) {
	if cat == nil {
		return nil, ErrNoCatalog
	}
	if err := size.Validate(); err != nil {
		return nil, err
	}
	b := &Block{cat: cat, size: size, fill: true}
	for _, opt := range opts {
		opt(b)
	}
	canon, err := cat.NormalizeAndValidate(id)
	if err != nil {
		return nil, err
	}
	b.id = canon
	if err := cat.ValidateProperties(canon, b.props); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Block) ID() string { return b.id }
func (b *Block) Size() Size { return b.size }
func (b *Block) Fill() bool { return b.fill }

func (b *Block) Properties() Properties { return b.props.Clone() }

// ReplaceProperties swaps the whole property map after validating it.
func (b *Block) ReplaceProperties(p map[string]string) error {
	next := Properties(p).Clone()
	if err := b.cat.ValidateProperties(b.id, next); err != nil {
		return fmt.Errorf("replace properties: %w", err)
	}
	b.props = next
	return nil
}

// MergeProperties overlays p on the current map after validating the result.
func (b *Block) MergeProperties(p map[string]string) error {
	next := b.props.Clone()
	if next == nil {
		next = Properties{}
	}
	for k, v := range p {
		next[k] = v
	}
	if err := b.cat.ValidateProperties(b.id, next); err != nil {
		return fmt.Errorf("merge properties: %w", err)
	}
	b.props = next.Clone()
	return nil
}
