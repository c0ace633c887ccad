package sqlitekv

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"sync"

	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
)

// watcher is one live /kv/watch subscription. changed is signaled only
// after a commit that touches one of keys (notifyWatchers filters by
// key), so unrelated commits don't wake unrelated watchers with empty
// work.
type watcher struct {
	keys    [][]byte
	changed chan struct{}
	once    sync.Once
}

func (w *watcher) signal() {
	select {
	case w.changed <- struct{}{}:
	default:
		// a batch is already pending; the reader hasn't drained it yet,
		// and re-checking current state on wake subsumes the missed signal
	}
}

// notifyWatchers signals every watcher whose keys intersect changedKeys.
// The caller must already hold s.mu (Commit does).
func (s *Store) notifyWatchers(changedKeys [][]byte) {
	for w := range s.watchers {
		if watcherCares(w.keys, changedKeys) {
			w.signal()
		}
	}
}

func watcherCares(watched, changed [][]byte) bool {
	for _, c := range changed {
		for _, k := range watched {
			if bytes.Equal(c, k) {
				return true
			}
		}
	}
	return false
}

// Watch returns a stream that reports the current entry-or-absence of
// each key in keys, first immediately and then after every commit that
// touches one of them.
func (s *Store) Watch(ctx context.Context, keys [][]byte) (engine.WatchStream, error) {
	w := &watcher{keys: keys, changed: make(chan struct{}, 1)}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	return &watchStream{store: s, w: w, first: true}, nil
}

type watchStream struct {
	store *Store
	w     *watcher
	first bool
}

// Next blocks until the watched set has changed (or, on the very first
// call, returns the current state immediately), then reads each key's
// current entry fresh from storage.
func (ws *watchStream) Next(ctx context.Context) ([]engine.KeyChange, error) {
	if !ws.first {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ws.w.changed:
		}
	}
	ws.first = false

	out := make([]engine.KeyChange, len(ws.w.keys))
	for i, k := range ws.w.keys {
		e, ok, err := ws.store.lookup(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = engine.KeyChange{Changed: true}
		if ok {
			out[i].Entry = &e
		}
	}
	return out, nil
}

func (ws *watchStream) Close() error {
	ws.w.once.Do(func() {
		ws.store.mu.Lock()
		delete(ws.store.watchers, ws.w)
		ws.store.mu.Unlock()
	})
	return nil
}

func (s *Store) lookup(ctx context.Context, key []byte) (engine.Entry, bool, error) {
	var value, vs []byte
	var enc int64
	var expireAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT value, encoding, versionstamp, expire_at_ms FROM entries WHERE key = ?
	`, key).Scan(&value, &enc, &vs, &expireAt)
	switch {
	case err == sql.ErrNoRows:
		return engine.Entry{}, false, nil
	case err != nil:
		return engine.Entry{}, false, err
	}
	if expireAt.Valid && expireAt.Int64 <= s.nowMs() {
		return engine.Entry{}, false, nil
	}
	return engine.Entry{
		Key:          key,
		Value:        rowValue(value, enc),
		Versionstamp: engine.Versionstamp(hex.EncodeToString(vs)),
	}, true, nil
}
