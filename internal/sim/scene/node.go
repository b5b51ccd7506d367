// Package scene holds the scene graph of cuboid blocks and erasers and the
// compiler that flattens it into an exported structure.
package scene

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyScene      = errors.New("scene: no blocks to export")
	ErrInvalidSize     = errors.New("scene: invalid size")
	ErrInvalidAxis     = errors.New("scene: invalid axis")
	ErrInvalidOrigin   = errors.New("scene: invalid origin")
	ErrInvalidOptions  = errors.New("scene: invalid export options")
	ErrAlreadyParented = errors.New("scene: node already has a parent")
	ErrCycle           = errors.New("scene: node would become its own ancestor")
	ErrNoCatalog       = errors.New("scene: block catalog required")
)

// Node is anything that can sit in the graph: groups, blocks and erasers.
type Node interface {
	Position() Vector3
	SetPosition(p Vector3)
	Parent() *Object3D
	base() *node
}

type node struct {
	pos    Vector3
	parent *Object3D
}

func (n *node) Position() Vector3     { return n.pos }
func (n *node) SetPosition(p Vector3) { n.pos = p }
func (n *node) Parent() *Object3D     { return n.parent }
func (n *node) base() *node           { return n }

// Translate shifts the node in place.
func (n *node) Translate(d Vector3) { n.pos = n.pos.Add(d) }

// Object3D groups children under a shared local origin.
type Object3D struct {
	node
	Name     string
	children []Node
}

func NewObject3D() *Object3D { return &Object3D{} }

// Group returns a named Object3D at p.
func Group(name string, p Vector3) *Object3D {
	o := &Object3D{Name: name}
	o.pos = p
	return o
}

// Add appends children in order. A child that already has a parent, or that
// is o or one of its ancestors, is rejected and nothing is added.
func (o *Object3D) Add(children ...Node) error {
	for i, c := range children {
		if c == nil {
			return fmt.Errorf("scene: add: child %d is nil", i)
		}
		b := c.base()
		if b.parent != nil {
			return ErrAlreadyParented
		}
		for anc := &o.node; anc != nil; {
			if anc == b {
				return ErrCycle
			}
			if anc.parent == nil {
				break
			}
			anc = &anc.parent.node
		}
		for _, prev := range children[:i] {
			if prev.base() == b {
				return fmt.Errorf("%w: duplicate child in one call", ErrAlreadyParented)
			}
		}
	}
	for _, c := range children {
		c.base().parent = o
		o.children = append(o.children, c)
	}
	return nil
}

// Remove detaches child. It reports whether child was found.
func (o *Object3D) Remove(child Node) bool {
	for i, c := range o.children {
		if c.base() == child.base() {
			o.children = append(o.children[:i], o.children[i+1:]...)
			c.base().parent = nil
			return true
		}
	}
	return false
}

func (o *Object3D) Children() []Node {
	out := make([]Node, len(o.children))
	copy(out, o.children)
	return out
}

// Scene is the root of a graph and owns export.
type Scene struct {
	Object3D
}

func NewScene() *Scene { return &Scene{} }
