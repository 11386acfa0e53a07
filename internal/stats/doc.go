// Package stats caches dashboard counts with per-key dirty flags.
//
// The cache lives in memory only; process restart starts cold and the
// first read of each key recounts from SQLite. Mutations invalidate
// exactly the buckets they touch (a visit on 2024-01-15 dirties that
// day, that month, and the visit total, nothing else).
package stats
