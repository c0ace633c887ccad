package sqlitekv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
	"github.com/Ap3pp3rs94/kvrelay/internal/envelope"
)

const queueSchema = `
CREATE TABLE IF NOT EXISTS queue (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	payload             BLOB NOT NULL,
	run_at_ms           INTEGER NOT NULL,
	keys_if_undelivered TEXT NOT NULL,
	backoff_schedule    TEXT NOT NULL
);
`

func (s *Store) Atomic() engine.Transaction {
	return &transaction{store: s}
}

type transaction struct {
	store     *Store
	checks    []engine.CheckSpec
	mutations []engine.MutationSpec
	enqueues  []engine.EnqueueSpec
}

func (t *transaction) Check(c engine.CheckSpec)      { t.checks = append(t.checks, c) }
func (t *transaction) Mutate(m engine.MutationSpec)  { t.mutations = append(t.mutations, m) }
func (t *transaction) Enqueue(e engine.EnqueueSpec)  { t.enqueues = append(t.enqueues, e) }

// Commit attaches and applies checks, then mutations, then enqueues, in
// exactly the order they were recorded (§4.6.2's ordering guarantee),
// inside one SQLite transaction.
func (t *transaction) Commit(ctx context.Context) (engine.Versionstamp, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if _, err := t.store.db.ExecContext(ctx, queueSchema); err != nil {
		return "", fmt.Errorf("sqlitekv: queue migrate: %w", err)
	}

	tx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("sqlitekv: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range t.checks {
		ok, err := t.checkSatisfied(ctx, tx, c)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", engine.ErrCheckFailed
		}
	}

	seq := t.store.seq + 1
	vsBytes := versionstampBytes(seq)
	vsHex := versionstampHex(seq)

	now := t.store.nowMs()

	for _, m := range t.mutations {
		if err := t.applyMutation(ctx, tx, m, vsBytes, vsHex, now); err != nil {
			return "", err
		}
	}

	for _, e := range t.enqueues {
		if err := t.applyEnqueue(ctx, tx, e, now); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("sqlitekv: commit: %w", err)
	}

	t.store.seq = seq
	t.store.notifyWatchers(changedKeysOf(t.mutations))

	return vsHex, nil
}

func changedKeysOf(ms []engine.MutationSpec) [][]byte {
	out := make([][]byte, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Key)
	}
	return out
}

func (t *transaction) checkSatisfied(ctx context.Context, tx *sql.Tx, c engine.CheckSpec) (bool, error) {
	var vs []byte
	err := tx.QueryRowContext(ctx, `SELECT versionstamp FROM entries WHERE key = ?`, c.Key).Scan(&vs)
	switch {
	case err == sql.ErrNoRows:
		return c.Expect == nil, nil
	case err != nil:
		return false, fmt.Errorf("sqlitekv: check: %w", err)
	default:
		if c.Expect == nil {
			return false, nil
		}
		want, err := Hex(*c.Expect)
		if err != nil {
			return false, err
		}
		if len(want) != len(vs) {
			return false, nil
		}
		for i := range want {
			if want[i] != vs[i] {
				return false, nil
			}
		}
		return true, nil
	}
}

func (t *transaction) applyMutation(ctx context.Context, tx *sql.Tx, m engine.MutationSpec, vsBytes []byte, vsHex engine.Versionstamp, now int64) error {
	switch m.Kind {
	case engine.MutationSet:
		return upsert(ctx, tx, m.Key, m.Value.Data, int64(m.Value.Encoding), vsBytes, expireArg(m.ExpireAt))

	case engine.MutationDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, m.Key)
		return err

	case engine.MutationSum, engine.MutationMax, engine.MutationMin:
		cur, err := readCounter(ctx, tx, m.Key)
		if err != nil {
			return err
		}
		delta, err := m.Value.Counter()
		if err != nil {
			return err
		}
		next := combineCounter(m.Kind, cur, delta)
		return upsert(ctx, tx, m.Key, le64(next), int64(envelope.EncodingLE64), vsBytes, nil)

	case engine.MutationSetSuffixVersionstampedKey:
		key := append([]byte(nil), m.Key...)
		off := m.VersionstampPlaceholderOffset
		if off < 0 || off+10 > len(key) {
			return fmt.Errorf("sqlitekv: versionstamp placeholder offset %d out of range for key of length %d", off, len(key))
		}
		copy(key[off:off+10], vsBytes)
		return upsert(ctx, tx, key, m.Value.Data, int64(m.Value.Encoding), vsBytes, expireArg(m.ExpireAt))

	default:
		return fmt.Errorf("sqlitekv: unknown mutation kind %d", m.Kind)
	}
}

func expireArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func upsert(ctx context.Context, tx *sql.Tx, key, value []byte, enc int64, vs []byte, expireAtMs any) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO entries (key, value, encoding, versionstamp, expire_at_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encoding = excluded.encoding,
			versionstamp = excluded.versionstamp,
			expire_at_ms = excluded.expire_at_ms
	`, key, value, enc, vs, expireAtMs)
	return err
}

func readCounter(ctx context.Context, tx *sql.Tx, key []byte) (uint64, error) {
	var value []byte
	err := tx.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("sqlitekv: read counter: %w", err)
	case len(value) != 8:
		return 0, fmt.Errorf("sqlitekv: stored counter value is not 8 bytes")
	default:
		return leToUint64(value), nil
	}
}

func combineCounter(kind engine.MutationKind, cur, delta uint64) uint64 {
	switch kind {
	case engine.MutationMax:
		if delta > cur {
			return delta
		}
		return cur
	case engine.MutationMin:
		if delta < cur {
			return delta
		}
		return cur
	default: // MutationSum
		return cur + delta
	}
}

func leToUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
	return b
}

func (t *transaction) applyEnqueue(ctx context.Context, tx *sql.Tx, e engine.EnqueueSpec, now int64) error {
	keysJSON, err := json.Marshal(e.KeysIfUndelivered)
	if err != nil {
		return err
	}
	backoffJSON, err := json.Marshal(e.BackoffSchedule)
	if err != nil {
		return err
	}
	runAt := now
	if e.Delay > 0 {
		runAt = now + e.Delay.Milliseconds()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO queue (payload, run_at_ms, keys_if_undelivered, backoff_schedule)
		VALUES (?, ?, ?, ?)
	`, e.Payload.Data, runAt, string(keysJSON), string(backoffJSON))
	return err
}
