// Package security provides the gateway's secret handling and admission
// control: the credential store, log and audit redaction, the audit
// trail, request payload limits and tool call rate limiting.
package security

import (
	"maps"
	"slices"
	"sync"
)

// CredentialStore holds the secrets loaded at startup, such as the signing
// key and the gateway's bearer token, keyed by "<module>.<field>". Every
// value is fed to the Redactor.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]string
}

// NewCredentialStore creates an empty credential store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]string)}
}

// Set stores a credential, replacing any previous value. Setting an empty
// value forgets the credential, since there is nothing to redact.
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.creds, name)
		return
	}
	s.creds[name] = value
}

// Get returns the named credential.
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.creds[name]
	return v, ok
}

// Names returns the credential names, sorted. Safe to log.
func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.creds))
}

// Values returns every secret in no particular order, for the Redactor.
func (s *CredentialStore) Values() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Collect(maps.Values(s.creds))
}
