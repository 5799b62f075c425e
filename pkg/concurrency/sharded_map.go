package concurrency

import (
	"hash/fnv"
)

const shardCount = 64

// ShardedMapString is a string-keyed map split across shardCount
// independently-locked shards, so concurrent callers touching
// different keys don't contend on one mutex.
type ShardedMapString[V any] struct {
	shards []*shardString[V]
}

type shardString[V any] struct {
	mu   *SmartRWMutex
	data map[string]V
}

func NewShardedMapString[V any]() *ShardedMapString[V] {
	m := &ShardedMapString[V]{
		shards: make([]*shardString[V], shardCount),
	}
	for i := 0; i < shardCount; i++ {
		m.shards[i] = &shardString[V]{
			data: make(map[string]V),
			mu:   NewSmartRWMutex(MutexConfig{Name: "ShardedMapString-Shard"}),
		}
	}
	return m
}

func (m *ShardedMapString[V]) getShard(key string) *shardString[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return m.shards[uint(h.Sum32())%shardCount]
}

func (m *ShardedMapString[V]) Set(key string, value V) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	shard.data[key] = value
}

func (m *ShardedMapString[V]) Get(key string) (V, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	val, ok := shard.data[key]
	return val, ok
}

func (m *ShardedMapString[V]) Delete(key string) {
	shard := m.getShard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.data, key)
}
