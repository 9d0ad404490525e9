// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package events

import "sync"

// lazyMap memoizes the result of load per key. Each key is loaded at
// most once, even under concurrent lookups; the load itself runs
// outside the map lock so independent keys do not serialize.
type lazyMap[K comparable, V any] struct {
	mu   sync.Mutex
	m    map[K]*lazyEntry[V]
	load func(K) (V, error)
}

type lazyEntry[V any] struct {
	once sync.Once
	val  V
	err  error
}

func newLazyMap[K comparable, V any](load func(K) (V, error)) *lazyMap[K, V] {
	return &lazyMap[K, V]{m: make(map[K]*lazyEntry[V]), load: load}
}

func (m *lazyMap[K, V]) get(key K) (V, error) {
	m.mu.Lock()
	ent, ok := m.m[key]
	if !ok {
		ent = new(lazyEntry[V])
		m.m[key] = ent
	}
	m.mu.Unlock()

	ent.once.Do(func() {
		ent.val, ent.err = m.load(key)
	})
	return ent.val, ent.err
}
