package cache

import (
	"context"
	"sync"
	"time"

	hamt "github.com/raviqqe/hamt"

	"tweetstamp-node/types"
)

// FNV hash prime
const primeRK = 16777619

type entryString string

func (s entryString) Hash() uint32 {
	hash := uint32(0)
	for i := 0; i < len(s); i++ {
		hash = hash*primeRK + uint32(s[i])
	}
	return hash
}

func (s entryString) Equal(e hamt.Entry) bool {
	o, ok := e.(entryString)
	if !ok {
		return false
	}
	return s == o
}

type node struct {
	key   hamt.Entry
	value *types.CachedVerification
	pre   *node
	next  *node
}

// MemoryCacheSvc is the in-process backend: a hamt map under one mutex with
// an LRU list capping residency and expiry checked on read.
type MemoryCacheSvc struct {
	mu       sync.Mutex
	capacity int
	head     *node
	end      *node
	entries  hamt.Map
}

func NewMemoryCacheSvc(capacity int) *MemoryCacheSvc {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCacheSvc{
		capacity: capacity,
		entries:  hamt.NewMap(),
	}
}

func (svc *MemoryCacheSvc) addNode(n *node) {
	if svc.end != nil {
		svc.end.next = n
		n.pre = svc.end
		n.next = nil
	}
	svc.end = n
	if svc.head == nil {
		svc.head = n
	}
}

func (svc *MemoryCacheSvc) removeNode(n *node) hamt.Entry {
	if n == svc.end {
		svc.end = svc.end.pre
		if svc.end != nil {
			svc.end.next = nil
		}
	}
	if n == svc.head {
		svc.head = svc.head.next
		if svc.head != nil {
			svc.head.pre = nil
		}
	}
	if n.pre != nil && n.next != nil {
		n.pre.next = n.next
		n.next.pre = n.pre
	}
	n.pre = nil
	n.next = nil
	return n.key
}

func (svc *MemoryCacheSvc) refreshNode(n *node) {
	if n == svc.end {
		return
	}
	svc.removeNode(n)
	svc.addNode(n)
}

func (svc *MemoryCacheSvc) find(contentHash string) *node {
	value := svc.entries.Find(hamt.Entry(entryString(contentHash)))
	if value == nil {
		return nil
	}
	n, ok := value.(*node)
	if !ok {
		return nil
	}
	return n
}

func (svc *MemoryCacheSvc) Get(_ context.Context, contentHash string) (*types.CachedVerification, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	n := svc.find(contentHash)
	if n == nil {
		return nil, nil
	}
	if n.value.Expired(time.Now()) {
		svc.entries = svc.entries.Delete(svc.removeNode(n))
		return nil, nil
	}
	svc.refreshNode(n)
	return n.value, nil
}

func (svc *MemoryCacheSvc) Put(_ context.Context, entry *types.CachedVerification) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if n := svc.find(entry.ContentHash); n != nil {
		n.value = entry
		svc.refreshNode(n)
		return nil
	}

	key := hamt.Entry(entryString(entry.ContentHash))
	n := &node{key: key, value: entry}
	if svc.entries.Size() >= svc.capacity && svc.head != nil {
		oldKey := svc.removeNode(svc.head)
		svc.entries = svc.entries.Delete(oldKey).Insert(key, n)
	} else {
		svc.entries = svc.entries.Insert(key, n)
	}
	svc.addNode(n)
	return nil
}

func (svc *MemoryCacheSvc) Evict(_ context.Context, contentHash string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if n := svc.find(contentHash); n != nil {
		svc.entries = svc.entries.Delete(svc.removeNode(n))
	}
	return nil
}

func (svc *MemoryCacheSvc) Size() int {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.entries.Size()
}
