package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// Role gates access to route groups
type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleCashier Role = "cashier"
)

// User is a back-office account
type User struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

type account struct {
	user User
	hash []byte
}

// Directory is an in-memory user store with bcrypt password hashes
type Directory struct {
	mu       sync.RWMutex
	cost     int
	accounts map[string]account
}

// NewDirectory creates an empty directory hashing with cost
func NewDirectory(cost int) *Directory {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Directory{cost: cost, accounts: make(map[string]account)}
}

// Add registers or replaces a user
func (d *Directory) Add(username, password string, role Role) error {
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", username, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[username] = account{user: User{Username: username, Role: role}, hash: hash}
	return nil
}

// Authenticate checks a username/password pair
func (d *Directory) Authenticate(username, password string) (User, error) {
	d.mu.RLock()
	acc, ok := d.accounts[username]
	d.mu.RUnlock()

	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return acc.user, nil
}
