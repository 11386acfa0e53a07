package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates the initial admin account on first run if no accounts
// exist. The generated password is returned to the caller for one-time
// display and never written to the log. Returns the empty string if
// seeding was skipped.
func SeedAdmin(ctx context.Context, repo Repository, logger *logging.Logger) (string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}

	if count > 0 {
		logger.Debug("accounts exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Account{
		Username:     "admin",
		PasswordHash: hash,
		Role:         RoleAdmin,
	}

	if err := repo.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", "admin",
		"action_required", "change this password immediately",
	)

	return password, nil
}
