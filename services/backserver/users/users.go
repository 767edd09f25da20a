// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package users owns the credential store and the JWT boundary.
// Accounts live in a JSON file keyed by username; passwords are bcrypt
// hashes and never stored or logged in the clear.
package users

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

var (
	// ErrInvalidCredentials covers both unknown users and bad passwords,
	// deliberately indistinguishable to callers.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUserExists blocks duplicate account creation.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound reports a missing account on update/delete.
	ErrUserNotFound = errors.New("user not found")
)

// Record is one stored account.
type Record struct {
	PasswordHash string `json:"password_hash"`
	Role         string `json:"role"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
}

// Account is the external view of a user, hash omitted.
type Account struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Store reads and writes the users file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore wraps the users file; a missing file is an empty store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]Record, error) {
	users := map[string]Record{}
	err := storage.ReadJSONFile(s.path, &users)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, fmt.Errorf("loading users: %w", err)
	}
	return users, nil
}

func (s *Store) save(users map[string]Record) error {
	return storage.AtomicWriteJSON(s.path, users)
}

// Get returns one account record.
func (s *Store) Get(username string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return Record{}, false, err
	}
	record, ok := users[username]
	return record, ok, nil
}

// List returns every account, usernames sorted, hashes omitted.
func (s *Store) List() ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return nil, err
	}
	accounts := make([]Account, 0, len(users))
	for username, record := range users {
		accounts = append(accounts, Account{
			Username:  username,
			Role:      record.Role,
			FirstName: record.FirstName,
			LastName:  record.LastName,
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	return accounts, nil
}

// Create adds an account with a bcrypt-hashed password.
func (s *Store) Create(username, password, role, firstName, lastName string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := users[username]; exists {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	users[username] = Record{
		PasswordHash: string(hash),
		Role:         role,
		FirstName:    firstName,
		LastName:     lastName,
	}
	return s.save(users)
}

// SetPassword replaces an existing account's password.
func (s *Store) SetPassword(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	record, ok := users[username]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	record.PasswordHash = string(hash)
	users[username] = record
	return s.save(users)
}

// Delete removes an account.
func (s *Store) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	delete(users, username)
	return s.save(users)
}

// Authenticate checks the password against the stored hash.
func (s *Store) Authenticate(username, password string) (Record, error) {
	record, ok, err := s.Get(username)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return Record{}, ErrInvalidCredentials
	}
	return record, nil
}
