package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/password"
)

// devUsers is the in-memory user store behind --dev. It seeds one account per role,
// all sharing the same password.
type devUsers struct {
	mu    sync.RWMutex
	users map[string]edgeauth.UserRecord
}

var devAccounts = []struct {
	id, email, name, userType string
}{
	{"dev-creator", "creator@dev.local", "Dev Creator", "creator"},
	{"dev-investor", "investor@dev.local", "Dev Investor", "investor"},
	{"dev-production", "production@dev.local", "Dev Production", "production"},
	{"dev-admin", "admin@dev.local", "Dev Admin", "admin"},
}

func newDevUsers(cfg edgeauth.PasswordConfig, secret string) (*devUsers, error) {
	hasher, err := password.NewArgon2(password.Config{
		Memory:           cfg.Memory,
		Time:             cfg.Time,
		Parallelism:      cfg.Parallelism,
		SaltLength:       cfg.SaltLength,
		KeyLength:        cfg.KeyLength,
		MaxPasswordBytes: cfg.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	d := &devUsers{users: make(map[string]edgeauth.UserRecord, len(devAccounts))}
	for _, a := range devAccounts {
		hash, err := hasher.Hash(secret)
		if err != nil {
			return nil, fmt.Errorf("hash dev password: %w", err)
		}
		d.users[a.id] = edgeauth.UserRecord{
			UserID:       a.id,
			Email:        a.email,
			Name:         a.name,
			UserType:     a.userType,
			PasswordHash: hash,
		}
	}
	return d, nil
}

func (d *devUsers) GetUserByIdentifier(_ context.Context, identifier string) (edgeauth.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.Email == identifier {
			return u, nil
		}
	}
	return edgeauth.UserRecord{}, edgeauth.ErrUserNotFound
}

func (d *devUsers) GetUserByID(_ context.Context, userID string) (edgeauth.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return edgeauth.UserRecord{}, edgeauth.ErrUserNotFound
	}
	return u, nil
}

func (d *devUsers) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[userID]
	if !ok {
		return edgeauth.ErrUserNotFound
	}
	u.PasswordHash = newHash
	d.users[userID] = u
	return nil
}
