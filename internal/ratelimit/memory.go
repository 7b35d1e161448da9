package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	memoryShards         = 64
	memoryCleanupEvery   = 5 * time.Minute
	memoryBucketStaleTTL = 30 * time.Minute
)

type bucket struct {
	count       int
	windowStart time.Time
	lastUse     time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Memory is the in-process fixed-window limiter. Buckets are created
// lazily on first request, reset when their window elapses, and swept
// after 30 minutes of disuse. State is lost on restart, which is
// acceptable for this threat model.
type Memory struct {
	rules  map[Class]Rule
	shards [memoryShards]*shard
}

func NewMemory(rules map[Class]Rule) *Memory {
	m := &Memory{rules: rules}
	for i := range m.shards {
		m.shards[i] = &shard{buckets: make(map[string]*bucket)}
	}
	go m.sweep()
	return m
}

func (m *Memory) rule(class Class) Rule {
	if r, ok := m.rules[class]; ok {
		return r
	}
	return defaultRule
}

func (m *Memory) shardFor(bucketKey string) *shard {
	h := fnv.New32a()
	h.Write([]byte(bucketKey))
	return m.shards[h.Sum32()%memoryShards]
}

// Admit implements Limiter. Buckets for different keys live in different
// shards, so there is no global lock across identities.
func (m *Memory) Admit(_ context.Context, key string, class Class, now time.Time) error {
	rule := m.rule(class)
	bucketKey := string(class) + "|" + key

	s := m.shardFor(bucketKey)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[bucketKey]
	if !ok {
		s.buckets[bucketKey] = &bucket{count: 1, windowStart: now, lastUse: now}
		return nil
	}
	b.lastUse = now

	elapsed := now.Sub(b.windowStart)
	if elapsed >= rule.Window {
		b.count = 1
		b.windowStart = now
		return nil
	}

	if b.count >= rule.Limit {
		return denied(rule.Window - elapsed)
	}

	b.count++
	return nil
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(memoryCleanupEvery)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		for _, s := range m.shards {
			s.mu.Lock()
			for k, b := range s.buckets {
				if now.Sub(b.lastUse) > memoryBucketStaleTTL {
					delete(s.buckets, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
