package lru

import (
	"fmt"

	"github.com/pmkol/multilist/pkg/multilist"
)

// recency is the only list of the underlying multilist. Front is the
// oldest entry.
const recency = 0

type LRU[K comparable, V any] struct {
	maxSize int
	onEvict func(key K, v V)

	l *multilist.Multilist[*KV[K, V]]
	m map[K]multilist.Handle[*KV[K, V]]
}

type KV[K comparable, V any] struct {
	key K
	v   V
}

func NewLRU[K comparable, V any](maxSize int, onEvict func(key K, v V)) *LRU[K, V] {
	if maxSize <= 0 {
		panic(fmt.Sprintf("LRU: invalid max size: %d", maxSize))
	}

	return &LRU[K, V]{
		maxSize: maxSize,
		onEvict: onEvict,
		l:       multilist.New[*KV[K, V]](1),
		m:       make(map[K]multilist.Handle[*KV[K, V]], maxSize),
	}
}

func (q *LRU[K, V]) Add(key K, v V) {
	// Update existing
	if h, ok := q.m[key]; ok {
		h.Value().v = v
		q.l.MoveToBack(recency, h)
		return
	}

	// Evict oldest if full. Its slot is reused by the PushBack below.
	var kv *KV[K, V]
	if q.l.Len(recency) >= q.maxSize {
		h, _ := q.l.Front(recency)
		kv = q.l.Remove(h)
		delete(q.m, kv.key)

		if q.onEvict != nil {
			q.onEvict(kv.key, kv.v)
		}
		kv.key = key
		kv.v = v
	} else {
		kv = &KV[K, V]{key: key, v: v}
	}

	q.m[key] = q.l.PushBack(recency, kv)
}

func (q *LRU[K, V]) Get(key K) (v V, ok bool) {
	h, ok := q.m[key]
	if !ok {
		return
	}
	q.l.MoveToBack(recency, h)
	return h.Value().v, true
}

func (q *LRU[K, V]) Del(key K) {
	h, ok := q.m[key]
	if !ok {
		return
	}
	q.delElem(h)
}

func (q *LRU[K, V]) PopOldest() (key K, v V, ok bool) {
	h, ok := q.l.Front(recency)
	if !ok {
		return
	}

	kv := q.l.Remove(h)
	delete(q.m, kv.key)
	return kv.key, kv.v, true
}

func (q *LRU[K, V]) Clean(f func(key K, v V) bool) (removed int) {
	for h := range q.l.All(recency) {
		kv := h.Value()
		if f(kv.key, kv.v) {
			q.delElem(h)
			removed++
		}
	}
	return
}

func (q *LRU[K, V]) Len() int {
	return q.l.Len(recency)
}

func (q *LRU[K, V]) delElem(h multilist.Handle[*KV[K, V]]) {
	kv := q.l.Remove(h)
	delete(q.m, kv.key)

	if q.onEvict != nil {
		q.onEvict(kv.key, kv.v)
	}
}
