// Package server provides the minimal auth backend for the lens camera
// app: login/me endpoints over an in-memory user store keyed by the
// identity provider's subject id, plus a token balance lookup. It carries
// no payment logic; the payment core runs client-side.
package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// User is one authenticated app user.
type User struct {
	ID            string    `json:"id"`
	IdentityID    string    `json:"identityId"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Email         string    `json:"email,omitempty"`
	PhoneNumber   string    `json:"phoneNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MemStore is an in-memory user store. Durable storage is a deployment
// choice this backend deliberately does not make.
type MemStore struct {
	mu         sync.RWMutex
	byIdentity map[string]*User
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{byIdentity: make(map[string]*User)}
}

// GetByIdentity returns the user for an identity subject, or nil.
func (s *MemStore) GetByIdentity(identityID string) *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.byIdentity[identityID]; ok {
		copied := *u
		return &copied
	}
	return nil
}

// Upsert creates the user on first login and refreshes mutable fields on
// subsequent ones. Empty incoming fields never clobber stored values.
func (s *MemStore) Upsert(identityID, walletAddress, email, phoneNumber string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byIdentity[identityID]
	if !ok {
		u = &User{
			ID:         uuid.NewString(),
			IdentityID: identityID,
			CreatedAt:  time.Now().UTC(),
		}
		s.byIdentity[identityID] = u
	}
	if walletAddress != "" {
		u.WalletAddress = walletAddress
	}
	if email != "" {
		u.Email = email
	}
	if phoneNumber != "" {
		u.PhoneNumber = phoneNumber
	}
	copied := *u
	return &copied
}
