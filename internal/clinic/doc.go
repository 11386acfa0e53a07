// Package clinic wires the persistence core into one facade.
//
// Store is the only surface the interface layer sees: repositories,
// search, the stats cache, exports, and backup behind a single handle
// whose mutating methods invalidate exactly the stat buckets they
// touch, synchronously, before returning.
package clinic
