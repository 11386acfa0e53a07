// Package database manages the embedded SQLite store for the clinic core.
//
// It owns the physical connections: a small bounded pool over a single
// database file, configured for write-ahead logging and synchronous
// commits so a crash mid-write leaves the store at its last committed
// state. Every other component acquires connections through this package
// and releases them within its own operation scope.
//
// The package also runs schema migrations. The store carries a single
// integer schema version; ordered migration steps bring an older file up
// to the current version on startup, one step per transaction. A store
// newer than the running build is a fatal error — see ErrIncompatibleSchema.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "data/clinic.db", PoolSize: 2, Durability: config.DurabilityFull})
//	if err != nil { ... }
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil { ... }
package database
