package embedding

import (
	"fmt"
	"sync"
	"testing"
)

func TestCache_Eviction(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3}) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v[0] != 2 {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestCache_GetRefreshesLRU(t *testing.T) {
	c := NewCache(2)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Get("a")
	c.Set("c", []float32{3}) // evicts "b", not "a"

	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after refresh")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := NewCache(16)
	for i := 0; i < 16; i++ {
		c.Set(fmt.Sprintf("k%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g+i)%16)
				if v, ok := c.Get(key); ok && len(v) != 1 {
					t.Errorf("Get(%s) = %v", key, v)
				}
				if i%10 == 0 {
					c.Set(key, []float32{float32(i)})
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("Len = %d, want <= 16", c.Len())
	}
}
