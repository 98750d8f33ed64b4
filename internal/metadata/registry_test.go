package metadata

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookRegistry() *Registry {
	r := NewRegistry()
	r.Load([]*Collection{
		{Name: "book", Table: "books", Fields: []Field{{Name: "id"}, {Name: "label"}}},
		{Name: "author", Table: "authors"},
	})
	return r
}

func TestRegistry_GetCollection(t *testing.T) {
	r := newBookRegistry()

	require.NotNil(t, r.GetCollection("Book"))
	assert.Equal(t, "books", r.GetCollection("book").Table)
	assert.Nil(t, r.GetCollection("unicorn"))

	all := r.AllCollections()
	require.Len(t, all, 2)
	assert.Equal(t, "author", all[0].Name)
	assert.Equal(t, "book", all[1].Name)
}

func TestRegistry_AddActionAndSegment(t *testing.T) {
	r := newBookRegistry()

	assert.True(t, r.AddAction("Book", SmartAction{Name: "Restock"}))
	assert.True(t, r.AddSegment("book", SmartSegment{Name: "Bestsellers"}))
	assert.False(t, r.AddAction("unicorn", SmartAction{Name: "Fly"}))
	assert.False(t, r.AddSegment("unicorn", SmartSegment{Name: "Flying"}))

	book := r.GetCollection("book")
	require.Len(t, book.Actions, 1)
	assert.Equal(t, "book.Restock", book.Actions[0].ID)
	assert.Equal(t, "book.Bestsellers", book.Segments[0].ID)
}

func TestRegistry_SnapshotIgnoresLaterActions(t *testing.T) {
	r := newBookRegistry()
	r.AddAction("book", SmartAction{Name: "First"})

	snapshot := r.AllCollections()[1]
	r.AddAction("book", SmartAction{Name: "Second"})
	r.AddSegment("book", SmartSegment{Name: "Recent"})

	assert.Len(t, snapshot.Actions, 1)
	assert.Empty(t, snapshot.Segments)
	assert.Len(t, r.GetCollection("book").Actions, 2)
}

func TestRegistry_ConcurrentAddAndRead(t *testing.T) {
	r := newBookRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.AddAction("book", SmartAction{Name: fmt.Sprintf("action %d", i)})
			r.AddSegment("book", SmartSegment{Name: fmt.Sprintf("segment %d", i)})
		}()
		go func() {
			defer wg.Done()
			for _, c := range r.AllCollections() {
				for _, a := range c.Actions {
					_ = a.ID
				}
				_ = len(c.Segments)
			}
		}()
	}
	wg.Wait()

	last := r.AllCollections()[1]
	assert.Len(t, last.Actions, 20)
	assert.Len(t, last.Segments, 20)
}
