package playerdb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zot/ezbridge/internal/logging"
)

// DefaultQueryTimeout bounds offline store lookups when no timeout is configured.
const DefaultQueryTimeout = 2 * time.Second

// Registry tracks online players, forwards offline lookups to a store and owns the
// listener table for the joined/left signals.
type Registry struct {
	online    []PlayerEntry // join order
	listeners map[string][]func(PlayerEntry)
	store     OfflineStore
	timeout   time.Duration
	log       *zap.Logger
	verbosity int
	mu        sync.RWMutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithQueryTimeout sets the per-lookup timeout for the offline store.
func WithQueryTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithVerbosity sets the Log verbosity.
func WithVerbosity(v int) Option {
	return func(r *Registry) { r.verbosity = v }
}

// New creates a registry backed by store. A nil logger disables logging.
func New(store OfflineStore, log *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		listeners: make(map[string][]func(PlayerEntry)),
		store:     store,
		timeout:   DefaultQueryTimeout,
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Log logs a verbosity-gated message.
func (r *Registry) Log(level int, format string, args ...any) {
	logging.Logf(r.log, r.verbosity, level, format, args...)
}

// Find looks an online player up by XUID.
func (r *Registry) Find(xuid uint64) (PlayerEntry, bool) {
	return r.find(func(e PlayerEntry) bool { return e.XUID == xuid })
}

// FindByUUID looks an online player up by UUID.
func (r *Registry) FindByUUID(id uuid.UUID) (PlayerEntry, bool) {
	return r.find(func(e PlayerEntry) bool { return e.UUID == id })
}

// FindByName looks an online player up by display name, ignoring case.
func (r *Registry) FindByName(name string) (PlayerEntry, bool) {
	return r.find(func(e PlayerEntry) bool { return strings.EqualFold(e.Name, name) })
}

func (r *Registry) find(match func(PlayerEntry) bool) (PlayerEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := slices.IndexFunc(r.online, match); i >= 0 {
		return r.online[i], true
	}
	return PlayerEntry{}, false
}

// FindOffline looks a known player up by XUID.
func (r *Registry) FindOffline(xuid uint64) (OfflinePlayerEntry, bool, error) {
	ctx, cancel := r.queryContext()
	defer cancel()
	return r.store.ByXUID(ctx, xuid)
}

// FindOfflineByUUID looks a known player up by UUID.
func (r *Registry) FindOfflineByUUID(id uuid.UUID) (OfflinePlayerEntry, bool, error) {
	ctx, cancel := r.queryContext()
	defer cancel()
	return r.store.ByUUID(ctx, id)
}

// FindOfflineByName looks a known player up by name, ignoring case.
func (r *Registry) FindOfflineByName(name string) (OfflinePlayerEntry, bool, error) {
	ctx, cancel := r.queryContext()
	defer cancel()
	return r.store.ByName(ctx, name)
}

func (r *Registry) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// GetData returns the online players in join order.
func (r *Registry) GetData() []PlayerEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.online)
}

// AddListener registers handler for signal. Unknown signal names are accepted and
// simply never fire. Safe to call from inside a handler.
func (r *Registry) AddListener(signal string, handler func(PlayerEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[signal] = append(r.listeners[signal], handler)
}

// Join records a player as online, remembers it in the offline store and emits
// "joined". A player already online under the same XUID is replaced.
func (r *Registry) Join(entry PlayerEntry) {
	r.mu.Lock()
	r.online = slices.DeleteFunc(r.online, func(e PlayerEntry) bool { return e.XUID == entry.XUID })
	r.online = append(r.online, entry)
	r.mu.Unlock()

	ctx, cancel := r.queryContext()
	if err := r.store.Upsert(ctx, entry.Offline()); err != nil {
		r.Log(0, "playerdb: remember %s (%d): %v", entry.Name, entry.XUID, err)
	}
	cancel()

	r.Log(1, "playerdb: %s joined (xuid=%d)", entry.Name, entry.XUID)
	r.Emit(SignalJoined, entry)
}

// Leave removes an online player and emits "left" with its last entry.
func (r *Registry) Leave(xuid uint64) (PlayerEntry, bool) {
	r.mu.Lock()
	i := slices.IndexFunc(r.online, func(e PlayerEntry) bool { return e.XUID == xuid })
	if i < 0 {
		r.mu.Unlock()
		return PlayerEntry{}, false
	}
	entry := r.online[i]
	r.online = slices.Delete(r.online, i, i+1)
	r.mu.Unlock()

	r.Log(1, "playerdb: %s left (xuid=%d)", entry.Name, entry.XUID)
	r.Emit(SignalLeft, entry)
	return entry, true
}

// Emit calls every handler registered for signal, in registration order.
// A panicking handler is logged and does not stop delivery to the rest.
func (r *Registry) Emit(signal string, entry PlayerEntry) {
	r.mu.RLock()
	handlers := slices.Clone(r.listeners[signal])
	r.mu.RUnlock()

	for i, handler := range handlers {
		if err := safeCall(handler, entry); err != nil {
			r.Log(0, "playerdb: %s listener %d: %v", signal, i, err)
		}
	}
}

func safeCall(handler func(PlayerEntry), entry PlayerEntry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	handler(entry)
	return nil
}

// ListenerCount reports how many handlers are registered for signal.
func (r *Registry) ListenerCount(signal string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[signal])
}
