package classify

import (
	"strings"
	"time"

	"dart_accounts/pkg/models"

	"github.com/patrickmn/go-cache"
)

// Interface is anything that classifies like Classifier.
type Interface interface {
	Classify(st models.StatementType, rawID, rawName string) (Result, bool)
}

type memoEntry struct {
	result Result
	ok     bool
}

// Memo caches classifications in memory. Peer comparisons re-classify the same
// few hundred account names on every request; results are deterministic for a
// fixed catalog so the cache never needs invalidation beyond expiry.
type Memo struct {
	next  Interface
	cache *cache.Cache
}

// NewMemo wraps next with a cache whose entries live for ttl.
func NewMemo(next Interface, ttl time.Duration) *Memo {
	return &Memo{
		next:  next,
		cache: cache.New(ttl, ttl*2),
	}
}

// Classify implements Interface.
func (m *Memo) Classify(st models.StatementType, rawID, rawName string) (Result, bool) {
	key := memoKey(st, rawID, rawName)
	if v, found := m.cache.Get(key); found {
		e := v.(memoEntry)
		return e.result, e.ok
	}

	res, ok := m.next.Classify(st, rawID, rawName)
	m.cache.SetDefault(key, memoEntry{result: res, ok: ok})
	return res, ok
}

// Len reports the number of cached entries, including expired ones not yet
// evicted.
func (m *Memo) Len() int {
	return m.cache.ItemCount()
}

func memoKey(st models.StatementType, rawID, rawName string) string {
	var b strings.Builder
	b.Grow(len(st) + len(rawID) + len(rawName) + 2)
	b.WriteString(string(st))
	b.WriteByte(0)
	b.WriteString(rawID)
	b.WriteByte(0)
	b.WriteString(rawName)
	return b.String()
}
