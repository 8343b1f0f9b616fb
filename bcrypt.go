package users

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost new hashes are produced with.
const DefaultHashCost = 14

// PasswordHasher hashes and verifies passwords with bcrypt. Hashes are
// self-describing; Verify reads the stored cost from the hash itself and
// signals when a correct password was checked against an outdated hash.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher producing hashes at the given cost.
// Costs outside bcrypt's supported range fall back to DefaultHashCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash generates a password hash at the configured cost.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", goerrors.New("password must not be empty", goerrors.CategoryValidation)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// Verify checks password against storedHash. It reports whether the pair is
// valid and, when valid, whether the stored hash was produced with outdated
// parameters and should be recomputed. It has no side effects and never
// returns the plaintext or the hash to callers through errors.
func (h *PasswordHasher) Verify(password, storedHash string) (valid bool, rehashNeeded bool) {
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return false, false
	}

	cost, err := bcrypt.Cost([]byte(storedHash))
	if err != nil {
		// Comparison succeeded, so the hash is parseable; treat any cost
		// read failure as an upgrade signal.
		return true, true
	}

	return true, cost != h.cost
}

// Compare is the error-returning form used where a mismatch should surface
// as the generic authentication failure.
func (h *PasswordHasher) Compare(password, storedHash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)); err != nil {
		return ErrAuthenticationFailed
	}
	return nil
}

// DummyHash produces a throwaway hash at the configured cost. Login paths
// compare against it when the account lookup misses so the miss costs the
// same as a real mismatch.
func (h *PasswordHasher) DummyHash() string {
	hash, err := h.Hash(uuid.NewString())
	if err != nil {
		return h.DummyHash()
	}
	return hash
}
