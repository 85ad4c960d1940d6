package game

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionRegistryRegisterAndGet(t *testing.T) {
	r := NewConnectionRegistry()
	p := NewPlayer("Alice", 4)

	require.NoError(t, r.Register(p))

	got, ok := r.Get(p.ID())
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 1, r.Count())
}

func TestConnectionRegistryDuplicateHandle(t *testing.T) {
	r := NewConnectionRegistry()
	p := NewPlayer("Alice", 4)

	require.NoError(t, r.Register(p))
	assert.Error(t, r.Register(p))
}

func TestConnectionRegistryUnregister(t *testing.T) {
	r := NewConnectionRegistry()
	p := NewPlayer("Alice", 4)
	require.NoError(t, r.Register(p))

	got, ok := r.Unregister(p.ID())
	require.True(t, ok)
	assert.Same(t, p, got)
	assert.Equal(t, 0, r.Count())

	_, ok = r.Unregister(p.ID())
	assert.False(t, ok)
}

func TestConnectionRegistryAll(t *testing.T) {
	r := NewConnectionRegistry()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Register(NewPlayer(fmt.Sprintf("player-%d", i), 4)))
	}
	assert.Len(t, r.All(), 5)
}

func TestGameRegistryAddAtomic(t *testing.T) {
	r := NewGameRegistry()
	first := NewGameInstance("maumau", "table-1", NewPlayer("Alice", 4))
	second := NewGameInstance("maumau", "table-1", NewPlayer("Bob", 4))

	assert.True(t, r.Add(first))
	assert.False(t, r.Add(second))

	got, ok := r.BySessionID("table-1")
	require.True(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, r.Len())
}

func TestGameRegistrySameGameTypeDifferentSessions(t *testing.T) {
	r := NewGameRegistry()
	assert.True(t, r.Add(NewGameInstance("maumau", "table-1", NewPlayer("Alice", 4))))
	assert.True(t, r.Add(NewGameInstance("maumau", "table-2", NewPlayer("Bob", 4))))
	assert.Equal(t, 2, r.Len())
}

func TestGameRegistryRemove(t *testing.T) {
	r := NewGameRegistry()
	g := NewGameInstance("maumau", "table-1", NewPlayer("Alice", 4))
	require.True(t, r.Add(g))

	r.Remove(g)
	_, ok := r.BySessionID("table-1")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestGameRegistryConcurrentAddSameSessionID(t *testing.T) {
	r := NewGameRegistry()

	const workers = 32
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			g := NewGameInstance("maumau", "contested", NewPlayer(fmt.Sprintf("p-%d", i), 4))
			if r.Add(g) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.Equal(t, 1, r.Len())
}
