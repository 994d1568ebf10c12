package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const defaultShards = 32

// shardedMap is a hash map split into independently locked shards. Every
// operation holds exactly one shard lock, and never while calling back into
// the map.
type shardedMap[K comparable, V any] struct {
	shards []mapShard[K, V]
	hash   func(K) uint64
}

type mapShard[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

func newShardedMap[K comparable, V any](n int, hash func(K) uint64) *shardedMap[K, V] {
	if n <= 0 {
		n = defaultShards
	}
	sm := &shardedMap[K, V]{
		shards: make([]mapShard[K, V], n),
		hash:   hash,
	}
	for i := range sm.shards {
		sm.shards[i].m = make(map[K]V)
	}
	return sm
}

func hashUUID(id uuid.UUID) uint64 { return xxhash.Sum64(id[:]) }

func hashString(s string) uint64 { return xxhash.Sum64String(s) }

func (sm *shardedMap[K, V]) shard(k K) *mapShard[K, V] {
	return &sm.shards[sm.hash(k)%uint64(len(sm.shards))]
}

func (sm *shardedMap[K, V]) Load(k K) (V, bool) {
	s := sm.shard(k)
	s.mu.RLock()
	v, ok := s.m[k]
	s.mu.RUnlock()
	return v, ok
}

// Swap stores v under k and returns the previous value, if any.
func (sm *shardedMap[K, V]) Swap(k K, v V) (V, bool) {
	s := sm.shard(k)
	s.mu.Lock()
	prev, ok := s.m[k]
	s.m[k] = v
	s.mu.Unlock()
	return prev, ok
}

func (sm *shardedMap[K, V]) Delete(k K) (V, bool) {
	s := sm.shard(k)
	s.mu.Lock()
	prev, ok := s.m[k]
	delete(s.m, k)
	s.mu.Unlock()
	return prev, ok
}

// Compute replaces the value under k with fn's result while holding the
// shard lock. Returning keep=false removes the key.
func (sm *shardedMap[K, V]) Compute(k K, fn func(v V, ok bool) (V, bool)) {
	s := sm.shard(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.m[k]
	next, keep := fn(cur, ok)
	if !keep {
		delete(s.m, k)
		return
	}
	s.m[k] = next
}

// View calls fn with the value under k while holding the shard read lock.
// fn must not retain or mutate the value.
func (sm *shardedMap[K, V]) View(k K, fn func(v V)) bool {
	s := sm.shard(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[k]
	if ok {
		fn(v)
	}
	return ok
}

// Range visits every entry, one shard at a time. Each shard is copied under
// its read lock and fn runs unlocked, so fn may call back into the map.
func (sm *shardedMap[K, V]) Range(fn func(k K, v V) bool) {
	type kv struct {
		k K
		v V
	}
	var buf []kv
	for i := range sm.shards {
		s := &sm.shards[i]
		buf = buf[:0]
		s.mu.RLock()
		for k, v := range s.m {
			buf = append(buf, kv{k, v})
		}
		s.mu.RUnlock()
		for _, e := range buf {
			if !fn(e.k, e.v) {
				return
			}
		}
	}
}

func (sm *shardedMap[K, V]) Len() int {
	n := 0
	for i := range sm.shards {
		s := &sm.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

// orderedSet is a reference-counted set that remembers first-insertion order.
// It is not safe for concurrent use; cells live inside a shardedMap and are
// only touched through Compute and View.
type orderedSet[T comparable] struct {
	order []T
	refs  map[T]int
}

func newOrderedSet[T comparable]() *orderedSet[T] {
	return &orderedSet[T]{refs: make(map[T]int)}
}

func (s *orderedSet[T]) add(v T) {
	if s.refs[v] == 0 {
		s.order = append(s.order, v)
	}
	s.refs[v]++
}

// release drops one reference to v and reports whether the set is now empty.
func (s *orderedSet[T]) release(v T) bool {
	n, ok := s.refs[v]
	if !ok {
		return len(s.order) == 0
	}
	if n > 1 {
		s.refs[v] = n - 1
		return false
	}
	delete(s.refs, v)
	for i, item := range s.order {
		if item == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return len(s.order) == 0
}

func (s *orderedSet[T]) values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

func (s *orderedSet[T]) len() int { return len(s.order) }
