package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is bcrypt's input ceiling (72 bytes), not a strength rule.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Vault hashes and verifies passwords with bcrypt. Every hash carries its own
// random salt and cost, so verification needs nothing but the stored string.
type Vault struct {
	cost  int
	dummy []byte
}

func NewVault(cost int) *Vault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// used to spend a full comparison when there is nothing real to compare
	dummy, err := bcrypt.GenerateFromPassword([]byte("identity-timing-equaliser"), cost)
	if err != nil {
		panic("security: generate dummy hash: " + err.Error())
	}

	return &Vault{cost: cost, dummy: dummy}
}

// HashPassword hashes a plain text password with bcrypt.
func (v *Vault) HashPassword(plain string) (string, error) {
	if len(plain) > 72 {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plain), v.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// CheckPassword reports whether plain matches hash. A malformed hash costs the
// same as a mismatch.
func (v *Vault) CheckPassword(hash, plain string) bool {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		v.Burn(plain)
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether hash was made at a cost other than the vault's.
// Rehashing on login keeps stored costs in line with the dummy used by Burn.
func (v *Vault) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	return err == nil && cost != v.cost
}

// Burn runs a throwaway comparison.
func (v *Vault) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(plain))
}
