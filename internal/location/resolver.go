package location

import (
	"strings"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Unknown is the tag used when a caller has never named a location.
const Unknown = "Unknown"

// Resolver remembers the last location tag each caller used.
// The memory lives for the lifetime of the process only.
type Resolver struct {
	last cmap.ConcurrentMap[int64, string]
}

func NewResolver() *Resolver {
	return &Resolver{last: cmap.NewWithCustomShardingFunction[int64, string](shard)}
}

// Resolve returns the location tag for a request from callerID.
// A non-empty explicit tag is remembered and returned; otherwise the caller's
// previous tag is used, falling back to Unknown.
func (r *Resolver) Resolve(callerID int64, explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		r.last.Set(callerID, explicit)
		return explicit
	}
	if tag, ok := r.last.Get(callerID); ok {
		return tag
	}
	return Unknown
}

func shard(id int64) uint32 {
	u := uint64(id)
	return uint32(u ^ (u >> 32))
}
