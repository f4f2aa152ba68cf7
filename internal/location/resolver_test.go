package location

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_UnknownWithoutMemory(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, Unknown, r.Resolve(1, ""))
	assert.Equal(t, Unknown, r.Resolve(1, "   "))

	assert.False(t, r.last.Has(1), "reading must not create memory")
}

func TestResolve_RemembersExplicitTag(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, "Lab A", r.Resolve(7, "  Lab A "))
	assert.Equal(t, "Lab A", r.Resolve(7, ""))

	assert.Equal(t, "Lab B", r.Resolve(7, "Lab B"))
	assert.Equal(t, "Lab B", r.Resolve(7, ""))
}

func TestResolve_CallersAreIsolated(t *testing.T) {
	r := NewResolver()
	r.Resolve(1, "North")
	r.Resolve(-2, "South")

	assert.Equal(t, "North", r.Resolve(1, ""))
	assert.Equal(t, "South", r.Resolve(-2, ""))
	assert.Equal(t, Unknown, r.Resolve(3, ""))
}

func TestResolve_ConcurrentCallers(t *testing.T) {
	r := NewResolver()
	var wg sync.WaitGroup
	for i := int64(0); i < 64; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tag := fmt.Sprintf("site-%d", id)
			r.Resolve(id, tag)
			assert.Equal(t, tag, r.Resolve(id, ""))
		}(i)
	}
	wg.Wait()
}
