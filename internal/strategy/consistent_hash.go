package strategy

import (
	"hash/crc32"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/btree"

	"github.com/angeloszaimis/failover-balancer/internal/backend"
)

const (
	defaultVirtualNodes = 100
	ringDegree          = 16
)

type consistentHashStrategy struct {
	virtualNodes int
	ring         atomic.Pointer[ringSnapshot]
	mutex        sync.Mutex
	hashKey      atomic.Uint32
}

type ringPoint struct {
	hash  uint32
	owner *backend.Backend
}

func lessPoint(a, b ringPoint) bool { return a.hash < b.hash }

type ringSnapshot struct {
	members string
	points  *btree.BTreeG[ringPoint]
}

func ringMembers(backends []*backend.Backend) string {
	var sb strings.Builder
	for _, b := range backends {
		sb.WriteString(b.URL().String())
		sb.WriteByte('|')
	}
	return sb.String()
}

func buildRing(backends []*backend.Backend, vnodes int) *ringSnapshot {
	rs := &ringSnapshot{
		members: ringMembers(backends),
		points:  btree.NewG(ringDegree, lessPoint),
	}

	for _, b := range backends {
		for i := 0; i < vnodes; i++ {
			key := b.URL().String() + "#" + strconv.Itoa(i)
			p := ringPoint{hash: crc32.ChecksumIEEE([]byte(key)), owner: b}

			// First owner keeps a colliding position.
			if rs.points.Has(p) {
				continue
			}
			rs.points.ReplaceOrInsert(p)
		}
	}

	return rs
}

// lookup walks clockwise from hash to the next point, wrapping to the
// smallest one.
func (r *ringSnapshot) lookup(hash uint32) *backend.Backend {
	if r == nil || r.points.Len() == 0 {
		return nil
	}

	var owner *backend.Backend
	r.points.AscendGreaterOrEqual(ringPoint{hash: hash}, func(p ringPoint) bool {
		owner = p.owner
		return false
	})
	if owner != nil {
		return owner
	}

	first, _ := r.points.Min()
	return first.owner
}

// Select maps the current key onto the ring. The ring is rebuilt whenever the
// candidate set differs from the one it was built for.
func (s *consistentHashStrategy) Select(backends []*backend.Backend) (*backend.Backend, bool) {
	if len(backends) == 0 {
		return nil, false
	}

	members := ringMembers(backends)
	rs := s.ring.Load()

	if rs == nil || rs.members != members {
		s.mutex.Lock()
		rs = s.ring.Load()
		if rs == nil || rs.members != members {
			rs = buildRing(backends, s.virtualNodes)
			s.ring.Store(rs)
		}
		s.mutex.Unlock()
	}

	chosen := rs.lookup(s.hashKey.Load())
	return chosen, chosen != nil
}

func (s *consistentHashStrategy) SetKey(key string) {
	s.hashKey.Store(crc32.ChecksumIEEE([]byte(key)))
}

func NewConsistentHashStrategy(virtualNodes int) Strategy {
	if virtualNodes <= 0 {
		virtualNodes = defaultVirtualNodes
	}

	return &consistentHashStrategy{virtualNodes: virtualNodes}
}
