// Package auth provides account persistence, Argon2id password hashing,
// and login verification for the clinic core.
//
// A fresh store has no accounts; SeedAdmin creates the first admin with a
// random password on first run. Login failures are indistinguishable
// between unknown username and wrong password.
package auth
