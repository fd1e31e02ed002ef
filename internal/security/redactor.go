package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// secretKeyPattern matches map keys and log attribute names that likely
// hold secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|private_key|keypair|api_key|credential|authorization)`)

// Redactor replaces secret values in strings and maps with a placeholder.
// Patterns catch well-known secret shapes; literals catch the values
// loaded at runtime, such as the signing key. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with DefaultPatterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: DefaultPatterns(),
	}
}

// AddPattern adds a compiled regex pattern to the redactor.
func (r *Redactor) AddPattern(pattern *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
}

// AddLiteral adds a literal secret value that should be redacted on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// SyncCredentials replaces the literal values with the current contents
// of store. Call it after provisioning, once modules have added keys.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	values := store.Values()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = values
}

// Redact replaces every known pattern and literal in s with
// RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}

// RedactMap walks m in place. Values under secret-looking keys are
// replaced outright; other strings go through Redact. Used before tool
// params leave the process in audit entries and memory listings.
func (r *Redactor) RedactMap(m map[string]any) {
	for k, v := range m {
		if secretKeyPattern.MatchString(k) {
			if s, ok := v.(string); ok && s != "" {
				m[k] = RedactPlaceholder
				continue
			}
		}
		switch val := v.(type) {
		case map[string]any:
			r.RedactMap(val)
		case []any:
			for i, item := range val {
				switch sub := item.(type) {
				case map[string]any:
					r.RedactMap(sub)
				case string:
					val[i] = r.Redact(sub)
				}
			}
		case string:
			if redacted := r.Redact(val); redacted != val {
				m[k] = redacted
			}
		}
	}
}

// IsSecretKey reports whether name looks like it labels a secret.
func IsSecretKey(name string) bool {
	return secretKeyPattern.MatchString(name)
}

// DefaultPatterns returns the secret shapes redacted out of the box.
//
// Base58 private keys are not matched by shape because they are
// indistinguishable from transaction signatures; the configured key is
// registered as a literal instead.
func DefaultPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		// Keypair files: a JSON array of 64 byte values.
		regexp.MustCompile(`\[\s*\d{1,3}(?:\s*,\s*\d{1,3}){63}\s*\]`),
		// Bearer credentials in headers or error strings.
		regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{8,}=*`),
		// RPC provider keys passed as query parameters.
		regexp.MustCompile(`(?i)api[-_]?key=[^&\s"]+`),
	}
}
