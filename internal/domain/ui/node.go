package ui

import (
	"context"
	"fmt"
)

// Props holds element attributes or component properties
type Props map[string]interface{}

// Node is one element of a rendered tree
type Node interface {
	isNode()
}

// Element is a host element such as div or span
type Element struct {
	Tag      string
	Props    Props
	Children []Node
}

// Text is an escaped text node
type Text string

// Fragment groups children without a wrapper element
type Fragment []Node

// Embed references a nested component to be rendered in place
type Embed struct {
	Component Component
	Props     Props
}

func (*Element) isNode() {}
func (Text) isNode()     {}
func (Fragment) isNode() {}
func (*Embed) isNode()   {}

// Component renders a view
type Component interface {
	Render(ctx context.Context, props Props) (Node, error)
}

// Keyed components expose a comparable identity. Two registrations with
// equal keys from the same extension in the same slot refer to the same view.
type Keyed interface {
	Key() interface{}
}

// ComponentFunc adapts a function to Component
type ComponentFunc func(ctx context.Context, props Props) (Node, error)

// Render calls f
func (f ComponentFunc) Render(ctx context.Context, props Props) (Node, error) {
	return f(ctx, props)
}

// Static is a component that always renders the same tree
type Static struct {
	Node Node
}

// Render returns the fixed tree
func (s Static) Render(context.Context, Props) (Node, error) {
	return s.Node, nil
}

// El builds an element
func El(tag string, props Props, children ...Node) *Element {
	return &Element{Tag: tag, Props: props, Children: children}
}

// SameComponent reports whether a and b identify the same view.
// Keyed components compare keys; others compare by value when comparable.
func SameComponent(a, b Component) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()

	ka, okA := a.(Keyed)
	kb, okB := b.(Keyed)
	if okA && okB {
		return ka.Key() == kb.Key()
	}
	if okA || okB {
		return false
	}
	return a == b
}

// RenderError wraps a failure inside a component
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
