package auth

import (
	"log"

	"golang.org/x/crypto/bcrypt"
)

// Account is one dashboard administrator.
type Account struct {
	Username     string
	PasswordHash []byte
	Role         string
}

// Accounts checks logins against a fixed in-memory table.
type Accounts struct {
	byName map[string]Account
}

// NewAccounts hashes the given username/password/role triples.
func NewAccounts(creds ...[3]string) *Accounts {
	a := &Accounts{byName: make(map[string]Account)}
	for _, c := range creds {
		hash, err := bcrypt.GenerateFromPassword([]byte(c[1]), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("hashing credentials for %s failed: %v", c[0], err)
			continue
		}
		a.byName[c[0]] = Account{Username: c[0], PasswordHash: hash, Role: c[2]}
	}
	return a
}

// DefaultAccounts seeds the stock admin login.
func DefaultAccounts() *Accounts {
	return NewAccounts([3]string{"admin", "admin123", "admin"})
}

// Verify returns the matching account when username and password check
// out; ok is false for unknown users and wrong passwords alike.
func (a *Accounts) Verify(username, password string) (Account, bool) {
	acct, ok := a.byName[username]
	if !ok {
		return Account{}, false
	}
	if bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)) != nil {
		return Account{}, false
	}
	return acct, true
}
