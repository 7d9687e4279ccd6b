package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func button() *Component {
	return &Component{
		Name:     "Button",
		Package:  "ui",
		Dir:      "/app/ui",
		FilePath: "/app/ui/button.kiln",
		Props: []Prop{
			{Param: "text", Field: "Text", Type: "string"},
			{Param: "color", Field: "Color", Type: "string", Default: `"blue"`, HasDefault: true},
		},
		ChildrenParam: "children",
	}
}

func TestNew(t *testing.T) {
	r := New()

	assert.NotNil(t, r)
	assert.NotNil(t, r.components)
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.watchers)
}

func TestRegistry_Register(t *testing.T) {
	r := New()
	c := button()
	r.Register(c)

	got, ok := r.Get("/app/ui", "Button")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, 1, r.Count())

	_, ok = r.Get("/app/other", "Button")
	assert.False(t, ok)
}

func TestRegistry_Lookup(t *testing.T) {
	r := New()
	r.Register(button())
	r.Register(&Component{Name: "Button", Package: "ui", Dir: "/vendor/ui"})

	got, ok := r.Lookup("ui", "Button")
	require.True(t, ok)
	assert.Equal(t, "/app/ui", got.Dir)

	_, ok = r.Lookup("views", "Button")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	r := New()
	r.Register(button())
	r.Register(&Component{Name: "card", Package: "ui", Dir: "/app/ui"})
	r.Register(&Component{Name: "Page", Package: "views", Dir: "/app/views"})
	r.Register(&Component{Name: "row", Package: "views", Dir: "/app/views"})

	assert.Equal(t, []string{"Page", "row", "ui.Button"}, r.Names("/app/views"))
	assert.Equal(t, []string{"Button", "card", "views.Page"}, r.Names("/app/ui"))
}

func TestRegistry_InDirAndAll(t *testing.T) {
	r := New()
	r.Register(&Component{Name: "B", Dir: "/b"})
	r.Register(&Component{Name: "Z", Dir: "/a"})
	r.Register(&Component{Name: "A", Dir: "/a"})

	var names []string
	for _, c := range r.InDir("/a") {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"A", "Z"}, names)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "/a", all[0].Dir)
	assert.Equal(t, "/b", all[2].Dir)
}

func TestRegistry_RemoveFile(t *testing.T) {
	r := New()
	r.Register(&Component{Name: "A", Dir: "/a", FilePath: "/a/x.kiln"})
	r.Register(&Component{Name: "B", Dir: "/a", FilePath: "/a/x.kiln"})
	r.Register(&Component{Name: "C", Dir: "/a", FilePath: "/a/y.kiln"})

	removed := r.RemoveFile("/a/x.kiln")
	require.Len(t, removed, 2)
	assert.Equal(t, "A", removed[0].Name)
	assert.Equal(t, 1, r.Count())

	r.Remove("/a", "C")
	assert.Equal(t, 0, r.Count())
	r.Remove("/a", "C")
}

func TestRegistry_Events(t *testing.T) {
	r := New()
	w := r.Watch()

	c := button()
	r.Register(c)
	r.Register(c)
	r.Remove(c.Dir, c.Name)

	for _, want := range []EventType{EventTypeAdded, EventTypeUpdated, EventTypeRemoved} {
		select {
		case ev := <-w:
			assert.Equal(t, want, ev.Type)
			assert.Equal(t, "Button", ev.Component.Name)
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("expected %s event", want)
		}
	}
}

func TestRegistry_UnWatch(t *testing.T) {
	r := New()
	w1 := r.Watch()
	w2 := r.Watch()
	require.Len(t, r.watchers, 2)

	r.UnWatch(w1)
	assert.Len(t, r.watchers, 1)

	_, ok := <-w1
	assert.False(t, ok, "channel should be closed")

	r.Register(button())
	select {
	case ev := <-w2:
		assert.Equal(t, EventTypeAdded, ev.Type)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("second watcher should still receive events")
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(index int) {
			r.Register(&Component{Name: fmt.Sprintf("Component%d", index), Dir: "/app"})
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, 10, r.Count())

	for i := 0; i < 10; i++ {
		go func(index int) {
			_, ok := r.Get("/app", fmt.Sprintf("Component%d", index))
			assert.True(t, ok)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestComponent_Helpers(t *testing.T) {
	c := button()

	assert.True(t, c.Exported())
	assert.True(t, c.HasChildren())
	assert.Equal(t, "ButtonProps", c.PropsType())
	assert.Equal(t, "RenderButton", c.RenderFunc())
	assert.Equal(t, []string{"text", "color", "children"}, c.ParamNames())

	p, ok := c.Prop("color")
	require.True(t, ok)
	assert.False(t, p.Required())
	p, _ = c.Prop("text")
	assert.True(t, p.Required())

	assert.False(t, (&Component{Name: "card"}).Exported())
	assert.Equal(t, "Children", c.ChildrenField())
	assert.Empty(t, (&Component{Name: "Icon"}).ChildrenField())
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "Text", ExportName("text"))
	assert.Equal(t, "UserID", ExportName("userID"))
	assert.Equal(t, "Color", ExportName("Color"))
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventTypeAdded.String())
	assert.Equal(t, "removed", EventTypeRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
