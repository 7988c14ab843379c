package placement

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement/internal/ring"
)

var (
	nodeA = ring.MustParseNodeID("10.0.0.1")
	nodeB = ring.MustParseNodeID("10.0.0.2")
	nodeC = ring.MustParseNodeID("10.0.0.3")
)

func TestCache_GetPut(t *testing.T) {
	t.Parallel()

	c := NewCache()
	_, found := c.Get(15)
	assert.False(t, found)
	assert.False(t, c.Contains(15))

	c.Put(15, Record{nodeB, nodeC})
	got, found := c.Get(15)
	require.True(t, found)
	assert.Equal(t, Record{nodeB, nodeC}, got)
	assert.True(t, c.Contains(15))
	assert.Equal(t, 1, c.Len())
}

func TestCache_PutCopiesRecord(t *testing.T) {
	t.Parallel()

	c := NewCache()
	r := Record{nodeA, nodeB}
	c.Put(1, r)
	r[1] = nodeC

	got, _ := c.Get(1)
	assert.Equal(t, Record{nodeA, nodeB}, got)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Put(1, Record{nodeA, nodeB})

	got, _ := c.Get(1)
	got[0] = nodeC

	again, _ := c.Get(1)
	assert.Equal(t, Record{nodeA, nodeB}, again)
}

func TestCache_SetPrimary(t *testing.T) {
	t.Parallel()

	c := NewCache()
	assert.False(t, c.SetPrimary(1, nodeA), "absent token must not be created")
	assert.False(t, c.Contains(1))

	c.Put(1, Record{nodeA, nodeB, nodeC})
	assert.True(t, c.SetPrimary(1, nodeC))
	got, _ := c.Get(1)
	assert.Equal(t, Record{nodeC, nodeB, nodeC}, got)

	c.Put(2, Record{})
	assert.True(t, c.SetPrimary(2, nodeB))
	got, _ = c.Get(2)
	assert.Equal(t, Record{nodeB}, got)
}

func TestCache_Entries(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Put(30, Record{nodeC})
	c.Put(-5, Record{nodeA})
	c.Put(10, Record{nodeB, nodeA})

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, []Entry{
		{Token: -5, Record: Record{nodeA}},
		{Token: 10, Record: Record{nodeB, nodeA}},
		{Token: 30, Record: Record{nodeC}},
	}, entries)

	entries[0].Record[0] = nodeC
	got, _ := c.Get(-5)
	assert.Equal(t, Record{nodeA}, got)
}

func TestCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	c := NewCache()
	wg := &sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := ring.Token(i % 5)
			c.Put(tok, Record{nodeA, nodeB})
			c.SetPrimary(tok, nodeC)
			c.Entries()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}

func TestRecord_Helpers(t *testing.T) {
	t.Parallel()

	var empty Record
	_, ok := empty.Primary()
	assert.False(t, ok)
	assert.Nil(t, empty.Copy())

	r := Record{nodeB, nodeC}
	p, ok := r.Primary()
	assert.True(t, ok)
	assert.Equal(t, nodeB, p)
	assert.True(t, r.Contains(nodeC))
	assert.False(t, r.Contains(nodeA))
}
