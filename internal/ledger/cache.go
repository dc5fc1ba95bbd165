package ledger

import (
	stderrors "errors"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
)

// Cache holds the committed ledger of every sidecar seen in a session,
// loading each lazily on first use.
//
// Ledgers returned by Get are the committed copies; callers that mutate
// speculatively must Clone first and hand the clone back through Commit.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Ledger
	policy  config.CorruptPolicy
}

// NewCache returns an empty cache applying policy to corrupt sidecars.
func NewCache(policy config.CorruptPolicy) *Cache {
	if policy == "" {
		policy = config.CorruptReset
	}
	return &Cache{entries: make(map[string]*Ledger), policy: policy}
}

// Get returns the committed ledger for a sidecar path.
func (c *Cache) Get(sidecar string) (*Ledger, error) {
	c.mu.Lock()
	if l, ok := c.entries[sidecar]; ok {
		c.mu.Unlock()
		return l, nil
	}
	c.mu.Unlock()

	l, err := Load(sidecar)
	if err != nil {
		if !stderrors.Is(err, ErrCorrupt) {
			return nil, err
		}
		if c.policy == config.CorruptFail {
			return nil, errors.WrapError(err, errors.CategoryLedger, "ledger sidecar cannot be decoded").
				WithContext("path", sidecar).UserAction().Build()
		}
		slog.Warn("Ledger sidecar cannot be decoded, starting empty",
			logfields.File(sidecar), logfields.Error(err))
		l = New()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[sidecar]; ok {
		return existing, nil
	}
	c.entries[sidecar] = l
	return l, nil
}

// Commit persists l to the sidecar and makes it the cached ledger. On a
// persist error the cache is left unchanged.
func (c *Cache) Commit(sidecar string, l *Ledger) error {
	if err := Persist(sidecar, l); err != nil {
		return err
	}
	c.Put(sidecar, l)
	return nil
}

// Put replaces the cached ledger without touching disk.
func (c *Cache) Put(sidecar string, l *Ledger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sidecar] = l
}

// Forget drops a cached entry so the next Get reloads from disk.
func (c *Cache) Forget(sidecar string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sidecar)
}

// Len returns the number of cached sidecars.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
