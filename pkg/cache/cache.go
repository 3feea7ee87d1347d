// Package cache keeps migration results keyed by a fingerprint of their
// inputs, so an unchanged project is not migrated twice. Entries live in an
// in-memory LRU list and are persisted with msgpack.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/cuda2sycl/pkg/diag"
	"github.com/l3aro/cuda2sycl/pkg/replace"
)

// FileName is the name of the persisted cache inside the cache directory.
const FileName = "results.msgpack"

const formatVersion = 1

// ErrKeyNotFound is returned when a key is not found in the cache.
var ErrKeyNotFound = errors.New("key not found")

// Result is the cached outcome of one migration run.
type Result struct {
	Rounds       int                              `msgpack:"rounds"`
	Replacements map[string][]replace.Replacement `msgpack:"replacements"`
	Diagnostics  []diag.Diagnostic                `msgpack:"diagnostics"`
}

// Entry is one cached result with its bookkeeping.
type Entry struct {
	Key        string    `msgpack:"key"`
	Result     Result    `msgpack:"result"`
	CreatedAt  time.Time `msgpack:"created_at"`
	AccessedAt time.Time `msgpack:"accessed_at"`
}

type listItem struct {
	Entry
	prev *listItem
	next *listItem
}

// list is a doubly-linked list, most recently used at head.
type list struct {
	head *listItem
	tail *listItem
	len  int
}

func (l *list) unlink(item *listItem) {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		l.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		l.tail = item.prev
	}
	item.prev, item.next = nil, nil
	l.len--
}

func (l *list) pushFront(item *listItem) {
	item.next = l.head
	item.prev = nil
	if l.head != nil {
		l.head.prev = item
	}
	l.head = item
	if l.tail == nil {
		l.tail = item
	}
	l.len++
}

func (l *list) moveToFront(item *listItem) {
	if item == l.head {
		return
	}
	l.unlink(item)
	l.pushFront(item)
}

func (l *list) removeBack() *listItem {
	item := l.tail
	if item != nil {
		l.unlink(item)
	}
	return item
}

// Options configures the cache.
type Options struct {
	// MaxEntries bounds the number of results kept. 0 means unlimited.
	MaxEntries int
	// OnEvict is called when an entry is dropped to make room.
	OnEvict func(key string)
}

// Cache is a goroutine-safe LRU map from fingerprint to Result.
type Cache struct {
	mu      sync.Mutex
	items   map[string]*listItem
	lru     list
	max     int
	onEvict func(string)
	now     func() time.Time
}

// New creates an empty cache.
func New(opts Options) *Cache {
	return &Cache{
		items:   make(map[string]*listItem),
		max:     opts.MaxEntries,
		onEvict: opts.OnEvict,
		now:     time.Now,
	}
}

// Get returns the result stored under key.
func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return Result{}, false
	}
	item.AccessedAt = c.now()
	c.lru.moveToFront(item)
	return item.Result, true
}

// Put stores r under key, evicting the least recently used entries when the
// cache is full.
func (c *Cache) Put(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if item, ok := c.items[key]; ok {
		item.Result = r
		item.AccessedAt = now
		c.lru.moveToFront(item)
		return
	}
	item := &listItem{Entry: Entry{Key: key, Result: r, CreatedAt: now, AccessedAt: now}}
	c.items[key] = item
	c.lru.pushFront(item)
	for c.max > 0 && c.lru.len > c.max {
		old := c.lru.removeBack()
		delete(c.items, old.Key)
		if c.onEvict != nil {
			c.onEvict(old.Key)
		}
	}
}

// Delete removes key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[key]
	if !ok {
		return ErrKeyNotFound
	}
	c.lru.unlink(item)
	delete(c.items, key)
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = list{}
}

type snapshot struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save writes the entries, most recently used first.
func (c *Cache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := snapshot{Version: formatVersion, Entries: make([]Entry, 0, c.lru.len)}
	for item := c.lru.head; item != nil; item = item.next {
		snap.Entries = append(snap.Entries, item.Entry)
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	return nil
}

// Load replaces the entries with those read from r. A snapshot written by
// another format version is ignored.
func (c *Cache) Load(r io.Reader) error {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decoding cache: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*listItem)
	c.lru = list{}
	if snap.Version != formatVersion {
		return nil
	}
	for i := len(snap.Entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: snap.Entries[i]}
		c.items[item.Key] = item
		c.lru.pushFront(item)
	}
	for c.max > 0 && c.lru.len > c.max {
		delete(c.items, c.lru.removeBack().Key)
	}
	return nil
}

// SaveDir persists the cache into dir, creating it when needed.
func (c *Cache) SaveDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	path := filepath.Join(dir, FileName)
	tmp, err := os.CreateTemp(dir, FileName+".*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if err := c.Save(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}

// LoadDir restores the cache persisted in dir. A missing file leaves the
// cache empty.
func (c *Cache) LoadDir(dir string) error {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}
