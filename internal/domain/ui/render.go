package ui

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"
)

// MaxDepth bounds component nesting
const MaxDepth = 64

// ErrTooDeep is returned when nesting exceeds MaxDepth
var ErrTooDeep = errors.New("component tree too deep")

var voidElements = map[string]bool{
	"area": true, "br": true, "col": true, "hr": true,
	"img": true, "input": true, "source": true, "wbr": true,
}

var attrAliases = map[string]string{
	"className": "class",
	"htmlFor":   "for",
	"tabIndex":  "tabindex",
}

// RenderHTML renders a tree to HTML. Output is not sanitized.
func RenderHTML(ctx context.Context, n Node) (string, error) {
	var sb strings.Builder
	if err := render(ctx, &sb, n, 0, "root"); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderComponent renders c with props
func RenderComponent(ctx context.Context, c Component, props Props) (string, error) {
	return RenderHTML(ctx, &Embed{Component: c, Props: props})
}

func render(ctx context.Context, sb *strings.Builder, n Node, depth int, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > MaxDepth {
		return &RenderError{Path: path, Err: ErrTooDeep}
	}

	switch v := n.(type) {
	case nil:
		return nil
	case Text:
		sb.WriteString(html.EscapeString(string(v)))
	case Fragment:
		for i, child := range v {
			if err := render(ctx, sb, child, depth+1, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case *Element:
		if v == nil {
			return nil
		}
		return renderElement(ctx, sb, v, depth, path)
	case *Embed:
		if v == nil || v.Component == nil {
			return nil
		}
		child, err := v.Component.Render(ctx, v.Props)
		if err != nil {
			var re *RenderError
			if errors.As(err, &re) {
				return err
			}
			return &RenderError{Path: path, Err: err}
		}
		return render(ctx, sb, child, depth+1, path+">component")
	default:
		return &RenderError{Path: path, Err: fmt.Errorf("unsupported node %T", n)}
	}
	return nil
}

func renderElement(ctx context.Context, sb *strings.Builder, el *Element, depth int, path string) error {
	tag := strings.ToLower(el.Tag)
	if !validTag(tag) {
		return &RenderError{Path: path, Err: fmt.Errorf("invalid tag %q", el.Tag)}
	}
	path = path + ">" + tag

	sb.WriteByte('<')
	sb.WriteString(tag)
	writeAttrs(sb, el.Props)
	sb.WriteByte('>')

	if voidElements[tag] {
		return nil
	}

	for i, child := range el.Children {
		if err := render(ctx, sb, child, depth+1, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}

	sb.WriteString("</")
	sb.WriteString(tag)
	sb.WriteByte('>')
	return nil
}

func writeAttrs(sb *strings.Builder, props Props) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		// Event handlers and children never reach HTML
		if k == "children" || k == "key" || k == "ref" || strings.HasPrefix(k, "on") {
			continue
		}
		name := k
		if alias, ok := attrAliases[k]; ok {
			name = alias
		}
		if !validAttr(name) {
			continue
		}

		var value string
		switch v := props[k].(type) {
		case string:
			value = v
		case bool:
			if !v {
				continue
			}
			sb.WriteByte(' ')
			sb.WriteString(name)
			continue
		case int:
			value = strconv.Itoa(v)
		case int64:
			value = strconv.FormatInt(v, 10)
		case float64:
			value = strconv.FormatFloat(v, 'f', -1, 64)
		case map[string]interface{}:
			if name != "style" {
				continue
			}
			value = styleString(v)
		default:
			continue
		}

		sb.WriteByte(' ')
		sb.WriteString(name)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(value))
		sb.WriteByte('"')
	}
}

func styleString(style map[string]interface{}) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", cssProperty(k), style[k]))
	}
	return strings.Join(parts, ";")
}

// cssProperty converts fontSize to font-size
func cssProperty(name string) string {
	var sb strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			sb.WriteByte('-')
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func validTag(tag string) bool {
	if tag == "" {
		return false
	}
	for i, r := range tag {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		case r == '-' && i > 0:
		default:
			return false
		}
	}
	return true
}

func validAttr(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == ':':
		default:
			return false
		}
	}
	return true
}
