package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"nil", nil, ""},
		{"text escaped", Text("<b>&"), "&lt;b&gt;&amp;"},
		{"element", El("div", Props{"className": "clock"}, Text("12:00")), `<div class="clock">12:00</div>`},
		{"void", El("br", nil), "<br>"},
		{"fragment", Fragment{Text("a"), El("span", nil, Text("b"))}, "a<span>b</span>"},
		{"bool attr", El("input", Props{"disabled": true, "hidden": false}), "<input disabled>"},
		{"handlers dropped", El("button", Props{"onClick": "x", "type": "button"}, Text("go")), `<button type="button">go</button>`},
		{"style", El("p", Props{"style": map[string]interface{}{"fontSize": "12px", "color": "red"}}), `<p style="color:red;font-size:12px"></p>`},
		{"attr escaped", El("a", Props{"title": `"x"`}), `<a title="&#34;x&#34;"></a>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderHTML(context.Background(), tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderNestedComponents(t *testing.T) {
	label := ComponentFunc(func(_ context.Context, props Props) (Node, error) {
		return El("span", nil, Text(props["text"].(string))), nil
	})
	panel := ComponentFunc(func(context.Context, Props) (Node, error) {
		return El("div", nil,
			&Embed{Component: label, Props: Props{"text": "one"}},
			&Embed{Component: label, Props: Props{"text": "two"}},
		), nil
	})

	got, err := RenderComponent(context.Background(), panel, nil)
	require.NoError(t, err)
	assert.Equal(t, "<div><span>one</span><span>two</span></div>", got)
}

func TestRenderComponentError(t *testing.T) {
	boom := errors.New("boom")
	broken := ComponentFunc(func(context.Context, Props) (Node, error) { return nil, boom })

	_, err := RenderHTML(context.Background(), El("div", nil, &Embed{Component: broken}))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Contains(t, re.Path, "div")
}

func TestRenderRejectsInvalidTag(t *testing.T) {
	_, err := RenderHTML(context.Background(), El("script src=x", nil))
	assert.Error(t, err)
}

func TestRenderDepthLimit(t *testing.T) {
	var loop ComponentFunc
	loop = func(context.Context, Props) (Node, error) {
		return &Embed{Component: loop}, nil
	}

	_, err := RenderComponent(context.Background(), loop, nil)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestRenderHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := RenderHTML(ctx, El("div", nil))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type keyedView struct{ key string }

func (k *keyedView) Render(context.Context, Props) (Node, error) { return Text(k.key), nil }
func (k *keyedView) Key() interface{}                           { return k.key }

func TestSameComponent(t *testing.T) {
	a := &keyedView{key: "a"}
	a2 := &keyedView{key: "a"}
	b := &keyedView{key: "b"}
	static := Static{Node: Text("x")}
	fn := ComponentFunc(func(context.Context, Props) (Node, error) { return nil, nil })

	assert.True(t, SameComponent(a, a2))
	assert.False(t, SameComponent(a, b))
	assert.False(t, SameComponent(a, static))
	assert.False(t, SameComponent(fn, fn), "func values are not comparable")
}
