package sqlitekv

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
)

// prefixUpperBound returns the lexicographically-smallest byte string
// strictly greater than every string with prefix p, or (nil, false) if
// p is all 0xFF bytes (meaning the scan has no finite upper bound).
func prefixUpperBound(p []byte) ([]byte, bool) {
	out := make([]byte, len(p))
	copy(out, p)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1], true
		}
	}
	return nil, false
}

func (s *Store) List(ctx context.Context, sel engine.Selector, opts engine.ListOptions) (engine.Iterator, error) {
	var end []byte
	var hasEnd bool
	switch {
	case sel.End != nil:
		end, hasEnd = sel.End, true
	case sel.Prefix != nil:
		end, hasEnd = prefixUpperBound(sel.Prefix)
	}

	order := "ASC"
	if opts.Reverse {
		order = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT key, value, encoding, versionstamp, expire_at_ms
		FROM entries
		WHERE key >= ? AND (? = 0 OR key < ?)
		ORDER BY key %s`, order)

	var endArg []byte
	endFlag := 0
	if hasEnd {
		endArg = end
		endFlag = 1
	}

	limit := -1
	if opts.Limit > 0 {
		limit = int(opts.Limit)
	}
	query += " LIMIT ?"

	rows, err := s.db.QueryContext(ctx, query, sel.Start, endFlag, endArg, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: list: %w", err)
	}
	return &rowIterator{rows: rows, now: s.nowMs()}, nil
}

type rowIterator struct {
	rows *sql.Rows
	now  int64
}

func (it *rowIterator) Next() (engine.Entry, bool, error) {
	for it.rows.Next() {
		var key, value, vs []byte
		var enc int64
		var expireAt sql.NullInt64
		if err := it.rows.Scan(&key, &value, &enc, &vs, &expireAt); err != nil {
			return engine.Entry{}, false, fmt.Errorf("sqlitekv: scan: %w", err)
		}
		if expireAt.Valid && expireAt.Int64 <= it.now {
			continue // lazily skip expired rows
		}
		return engine.Entry{
			Key:          key,
			Value:        rowValue(value, enc),
			Versionstamp: engine.Versionstamp(hex.EncodeToString(vs)),
		}, true, nil
	}
	if err := it.rows.Err(); err != nil {
		return engine.Entry{}, false, err
	}
	it.rows.Close()
	return engine.Entry{}, false, nil
}
