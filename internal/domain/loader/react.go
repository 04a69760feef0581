package loader

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
)

// Whitelisted module names
const (
	ModuleReact      = "react"
	ModuleReactDOM   = "react-dom/client"
	reactVersion     = "18.3.1-exthost"
	fragmentTypeName = "Fragment"
)

// fragmentType marks React.Fragment
type fragmentType struct{}

var fragment = &fragmentType{}

// newResolver returns the restricted require function
func (m *gojaModule) newResolver(react goja.Value) func(goja.FunctionCall) goja.Value {
	modules := map[string]goja.Value{
		ModuleReact:    react,
		ModuleReactDOM: m.newReactDOM(),
	}
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if v, ok := modules[name]; ok {
			return v
		}
		err := m.vm.NewGoError(fmt.Errorf("cannot find module %q", name))
		_ = err.Set("code", "MODULE_NOT_FOUND")
		m.notFound, m.missing = err, name
		panic(err)
	}
}

// newReact builds the rendering library handle
func (m *gojaModule) newReact() goja.Value {
	react := m.vm.NewObject()
	_ = react.Set("version", reactVersion)
	_ = react.Set(fragmentTypeName, fragment)
	_ = react.Set("createElement", m.createElement)

	// Hooks render statically: state never changes between renders
	_ = react.Set("useState", func(call goja.FunctionCall) goja.Value {
		initial := call.Argument(0)
		if fn, ok := goja.AssertFunction(initial); ok {
			v, err := fn(goja.Undefined())
			if err != nil {
				panic(err)
			}
			initial = v
		}
		return m.vm.NewArray(initial, func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	})
	_ = react.Set("useMemo", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			return goja.Undefined()
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			panic(err)
		}
		return v
	})
	_ = react.Set("useCallback", func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	})
	_ = react.Set("useRef", func(call goja.FunctionCall) goja.Value {
		ref := m.vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		return ref
	})
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = react.Set("useEffect", noop)
	_ = react.Set("useLayoutEffect", noop)
	return react
}

// newReactDOM builds the root-mounting companion. Roots are inert: the host
// renders views through slots, not through mounted roots.
func (m *gojaModule) newReactDOM() goja.Value {
	dom := m.vm.NewObject()
	_ = dom.Set("createRoot", func(goja.FunctionCall) goja.Value {
		root := m.vm.NewObject()
		_ = root.Set("render", func(call goja.FunctionCall) goja.Value {
			if _, err := m.toNode(call.Argument(0)); err != nil {
				panic(m.vm.NewTypeError(err.Error()))
			}
			return goja.Undefined()
		})
		_ = root.Set("unmount", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
		return root
	})
	return dom
}

// createElement implements React.createElement(type, props, ...children)
func (m *gojaModule) createElement(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)

	var props ui.Props
	if p, ok := call.Argument(1).(*goja.Object); ok {
		if exported, ok := p.Export().(map[string]interface{}); ok {
			props = ui.Props(exported)
		}
	}

	var children []ui.Node
	if len(call.Arguments) > 2 {
		for _, arg := range call.Arguments[2:] {
			n, err := m.toNode(arg)
			if err != nil {
				panic(m.vm.NewTypeError(err.Error()))
			}
			if n != nil {
				children = append(children, n)
			}
		}
	} else if props != nil {
		if c, ok := props["children"]; ok {
			n, err := m.toNode(m.vm.ToValue(c))
			if err != nil {
				panic(m.vm.NewTypeError(err.Error()))
			}
			if n != nil {
				children = append(children, n)
			}
		}
	}

	if _, ok := typ.Export().(*fragmentType); ok {
		return m.vm.ToValue(ui.Fragment(children))
	}
	if fn, ok := goja.AssertFunction(typ); ok {
		embedProps := ui.Props{}
		for k, v := range props {
			embedProps[k] = v
		}
		switch len(children) {
		case 0:
		case 1:
			embedProps["children"] = children[0]
		default:
			embedProps["children"] = ui.Fragment(children)
		}
		return m.vm.ToValue(&ui.Embed{
			Component: &jsComponent{m: m, fn: fn, key: typ.ToObject(m.vm)},
			Props:     embedProps,
		})
	}
	if tag, ok := typ.Export().(string); ok {
		delete(props, "children")
		return m.vm.ToValue(&ui.Element{Tag: tag, Props: props, Children: children})
	}
	panic(m.vm.NewTypeError(fmt.Sprintf("invalid element type %s", typ.String())))
}

// toNode converts a JS value to an element tree; caller holds m.mu
func (m *gojaModule) toNode(v goja.Value) (ui.Node, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}

	switch x := v.Export().(type) {
	case ui.Node:
		return x, nil
	case bool:
		return nil, nil
	case string:
		return ui.Text(x), nil
	case int64:
		return ui.Text(strconv.FormatInt(x, 10)), nil
	case float64:
		return ui.Text(v.String()), nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return ui.Text(v.String()), nil
	}
	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		frag := make(ui.Fragment, 0, n)
		for i := 0; i < n; i++ {
			child, err := m.toNode(obj.Get(strconv.Itoa(i)))
			if err != nil {
				return nil, err
			}
			if child != nil {
				frag = append(frag, child)
			}
		}
		return frag, nil
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return nil, fmt.Errorf("functions are not valid as a child")
	}
	return nil, fmt.Errorf("objects are not valid as a child")
}

// toComponent converts a registerView argument. Unusable values are kept
// and fail at render time.
func (m *gojaModule) toComponent(v goja.Value) ui.Component {
	if fn, ok := goja.AssertFunction(v); ok {
		return &jsComponent{m: m, fn: fn, key: v.ToObject(m.vm)}
	}
	if obj, ok := v.(*goja.Object); ok {
		if render, ok := goja.AssertFunction(obj.Get("render")); ok {
			return &jsComponent{m: m, fn: bindThis(render, obj), key: obj}
		}
	}
	n, err := m.toNode(v)
	if err != nil {
		return invalidComponent{reason: err.Error()}
	}
	if n == nil {
		return invalidComponent{reason: "view is empty"}
	}
	return ui.Static{Node: n}
}

// jsComponent is a function component living in an extension VM
type jsComponent struct {
	m   *gojaModule
	fn  goja.Callable
	key *goja.Object
}

// Key identifies the underlying JS function
func (c *jsComponent) Key() interface{} {
	return c.key
}

// Render calls the component under the VM lock with ctx's deadline
func (c *jsComponent) Render(ctx context.Context, props ui.Props) (ui.Node, error) {
	m := c.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := m.guard(ctx, 0)
	defer stop()

	propsVal := m.vm.NewObject()
	for k, v := range props {
		_ = propsVal.Set(k, v)
	}

	ret, err := c.fn(goja.Undefined(), propsVal)
	if err != nil {
		return nil, m.jsError(err)
	}
	return m.toNode(ret)
}

// invalidComponent stands in for a malformed registration
type invalidComponent struct {
	reason string
}

func (c invalidComponent) Render(context.Context, ui.Props) (ui.Node, error) {
	return nil, fmt.Errorf("invalid view: %s", c.reason)
}
