package slots

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/domain/ui"
)

type view struct{ name string }

func (v *view) Render(context.Context, ui.Props) (ui.Node, error) {
	return ui.El("span", nil, ui.Text(v.name)), nil
}

func TestGetViewsUnknownSlotIsEmptyNotNil(t *testing.T) {
	r := NewRegistry()

	views := r.GetViews("nonexistent.slot")
	require.NotNil(t, views)
	assert.Len(t, views, 0)
}

func TestRegisterSameComponentReplaces(t *testing.T) {
	r := NewRegistry()
	clock := &view{name: "clock"}

	first := r.RegisterView("a", "header.right", clock)
	second := r.RegisterView("a", "header.right", clock)

	views := r.GetViews("header.right")
	require.Len(t, views, 1)
	assert.Equal(t, second.ID, views[0].ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	one, two := &view{name: "one"}, &view{name: "two"}

	r.RegisterView("a", "s", one)
	r.RegisterView("b", "s", two)
	r.RegisterView("a", "s", one)

	views := r.GetViews("s")
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0].ExtensionID)
	assert.Equal(t, "b", views[1].ExtensionID)
}

func TestDistinctComponentsAppend(t *testing.T) {
	r := NewRegistry()

	r.RegisterView("A", "sidebar.bottom", &view{name: "one"})
	r.RegisterView("A", "sidebar.bottom", &view{name: "two"})
	r.RegisterView("A", "header.right", &view{name: "three"})

	bottom := r.GetViews("sidebar.bottom")
	require.Len(t, bottom, 2)
	for _, v := range bottom {
		assert.Equal(t, "A", v.ExtensionID)
	}
	assert.NotEqual(t, bottom[0].ID, bottom[1].ID)
	assert.Len(t, r.GetViews("header.right"), 1)
}

func TestSameComponentOtherExtensionAppends(t *testing.T) {
	r := NewRegistry()
	shared := &view{name: "shared"}

	r.RegisterView("a", "s", shared)
	r.RegisterView("b", "s", shared)

	assert.Len(t, r.GetViews("s"), 2)
}

func TestRemoveExtension(t *testing.T) {
	r := NewRegistry()
	r.RegisterView("A", "sidebar.bottom", &view{name: "one"})
	r.RegisterView("B", "sidebar.bottom", &view{name: "two"})
	r.RegisterView("A", "header.right", &view{name: "three"})

	removed := r.RemoveExtension("A")

	assert.Equal(t, 2, removed)
	assert.Len(t, r.GetViews("header.right"), 0)
	views := r.GetViews("sidebar.bottom")
	require.Len(t, views, 1)
	assert.Equal(t, "B", views[0].ExtensionID)
	assert.Equal(t, []string{"sidebar.bottom"}, r.Slots())
	assert.Equal(t, []string{"B"}, r.Owners())
	assert.Equal(t, 0, r.Count("A"))
	assert.Equal(t, 0, r.RemoveExtension("A"))
}

func TestGetViewsReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.RegisterView("a", "s", &view{name: "x"})

	views := r.GetViews("s")
	views[0].ExtensionID = "mutated"

	assert.Equal(t, "a", r.GetViews("s")[0].ExtensionID)
}

func TestSubscribe(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	var changes []Change
	unsubscribe := r.Subscribe(func(c Change) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	v := &view{name: "x"}
	r.RegisterView("a", "s", v)
	r.RegisterView("a", "s", v)
	r.RemoveExtension("a")
	unsubscribe()
	r.RegisterView("a", "s", v)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeRegistered, changes[0].Kind)
	assert.Equal(t, ChangeReplaced, changes[1].Kind)
	assert.Equal(t, ChangeRemoved, changes[2].Kind)
	assert.Equal(t, 0, changes[2].Views)
	assert.Less(t, changes[0].Version, changes[2].Version)
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ext := "a"
			if i%2 == 1 {
				ext = "b"
			}
			r.RegisterView(ext, "s", &view{name: "v"})
			_ = r.GetViews("s")
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.GetViews("s"), 20)
	assert.Equal(t, 10, r.Count("a"))
}
