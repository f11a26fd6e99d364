// Package acl implements the user model behind AUTH: named users with a
// password hash, an enabled flag, and the set of command categories, key
// patterns, and channel patterns they are permitted to touch.
package acl

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/edirooss/respd/internal/store"
)

// Category groups commands for coarse-grained permissioning, e.g.
// "read", "write", "admin", "pubsub".
type Category string

const (
	CategoryRead    Category = "read"
	CategoryWrite   Category = "write"
	CategoryAdmin   Category = "admin"
	CategoryPubSub  Category = "pubsub"
	CategoryConnect Category = "connection"
)

// User is one ACL identity.
type User struct {
	Name         string
	PasswordHash string // hex sha256, empty means "nopass"
	Enabled      bool
	Categories   map[Category]bool
	KeyPatterns  []string
	ChanPatterns []string
}

func (u *User) allowsCategory(c Category) bool {
	return u.Categories[c]
}

func (u *User) allowsKey(key string) bool {
	if len(u.KeyPatterns) == 0 {
		return true
	}
	for _, p := range u.KeyPatterns {
		if store.GlobMatch(p, key) {
			return true
		}
	}
	return false
}

func (u *User) allowsChannel(channel string) bool {
	if len(u.ChanPatterns) == 0 {
		return true
	}
	for _, p := range u.ChanPatterns {
		if store.GlobMatch(p, channel) {
			return true
		}
	}
	return false
}

var (
	ErrNoSuchUser     = errors.New("WRONGPASS invalid username-password pair or user is disabled")
	ErrUserDisabled   = errors.New("WRONGPASS invalid username-password pair or user is disabled")
	ErrPermissionDenied = errors.New("NOPERM this user has no permissions to run this command")
)

// Store holds the full set of known ACL users, guarded by a single
// RWMutex: ACL mutation is rare relative to the lookups AUTH performs per
// connection, so lookups take the read lock and mutations the write lock.
type Store struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewStore seeds a default user equivalent to Redis's "default" ACL
// user: full access, password optional depending on requirePass.
func NewStore(defaultPassword string) *Store {
	s := &Store{users: make(map[string]*User)}
	def := &User{
		Name:    "default",
		Enabled: true,
		Categories: map[Category]bool{
			CategoryRead: true, CategoryWrite: true, CategoryAdmin: true,
			CategoryPubSub: true, CategoryConnect: true,
		},
	}
	if defaultPassword != "" {
		def.PasswordHash = hashPassword(defaultPassword)
	}
	s.users["default"] = def
	return s
}

func hashPassword(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:])
}

// SetUser creates or replaces a user definition.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Name] = u
}

func (s *Store) DeleteUser(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return false
	}
	delete(s.users, name)
	return true
}

func (s *Store) Get(name string) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	return u, ok
}

func (s *Store) List() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out
}

// Authenticate validates a username/password pair with a constant-time
// hash comparison, so AUTH failures cannot be used to time-probe the
// stored hash.
func (s *Store) Authenticate(name, password string) (*User, error) {
	s.mu.RLock()
	u, ok := s.users[name]
	s.mu.RUnlock()
	if !ok || !u.Enabled {
		return nil, ErrNoSuchUser
	}
	if u.PasswordHash == "" {
		return u, nil
	}
	got := hashPassword(password)
	if subtle.ConstantTimeCompare([]byte(got), []byte(u.PasswordHash)) != 1 {
		return nil, ErrNoSuchUser
	}
	return u, nil
}

// Authorize checks whether u may run a command in the given category
// against the given key (key == "" skips the key-pattern check, for
// commands with no single key argument).
func (u *User) Authorize(c Category, key string) error {
	if !u.allowsCategory(c) {
		return ErrPermissionDenied
	}
	if key != "" && !u.allowsKey(key) {
		return ErrPermissionDenied
	}
	return nil
}
