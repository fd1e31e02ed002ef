package security

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
)

func keypairJSON() string {
	parts := make([]string, 64)
	for i := range parts {
		parts[i] = strconv.Itoa((i * 7) % 256)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestRedactor_DefaultPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "keypair array",
			input: "loaded " + keypairJSON(),
			want:  "loaded " + RedactPlaceholder,
		},
		{
			name:  "short byte array kept",
			input: "seeds [1, 2, 3]",
			want:  "seeds [1, 2, 3]",
		},
		{
			name:  "bearer token",
			input: "Authorization: Bearer abcdefgh12345678",
			want:  "Authorization: " + RedactPlaceholder,
		},
		{
			name:  "rpc api key",
			input: "dial https://rpc.example.com/?api-key=0123abcd failed",
			want:  "dial https://rpc.example.com/?" + RedactPlaceholder + " failed",
		},
		{
			name:  "signature kept",
			input: "sent 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
			want:  "sent 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	r := NewRedactor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := r.Redact(tt.input); got != tt.want {
				t.Errorf("Redact(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRedactor_Literals(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("")
	r.AddLiteral("4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP")

	got := r.Redact("signer key 4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP loaded")
	if want := "signer key " + RedactPlaceholder + " loaded"; got != want {
		t.Errorf("Redact() = %q, want %q", got, want)
	}
}

func TestRedactor_SyncCredentials(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set("gateway.bearer", "tok-123")
	r := NewRedactor()
	r.AddLiteral("stale")
	r.SyncCredentials(store)

	if got := r.Redact("stale tok-123"); got != "stale "+RedactPlaceholder {
		t.Errorf("Redact() = %q", got)
	}
}

func TestRedactor_RedactMap(t *testing.T) {
	t.Parallel()

	r := NewRedactor()
	r.AddLiteral("hunter2")
	m := map[string]any{
		"to":          "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"private_key": "abc",
		"note":        "password is hunter2",
		"nested":      map[string]any{"api_key": "k", "lamports": 5},
		"list":        []any{"hunter2", map[string]any{"token": "t"}},
	}
	r.RedactMap(m)

	if m["to"] != "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin" {
		t.Errorf("address changed: %v", m["to"])
	}
	if m["private_key"] != RedactPlaceholder {
		t.Errorf("private_key = %v", m["private_key"])
	}
	if m["note"] != "password is "+RedactPlaceholder {
		t.Errorf("note = %v", m["note"])
	}
	nested := m["nested"].(map[string]any)
	if nested["api_key"] != RedactPlaceholder || nested["lamports"] != 5 {
		t.Errorf("nested = %v", nested)
	}
	list := m["list"].([]any)
	if list[0] != RedactPlaceholder || list[1].(map[string]any)["token"] != RedactPlaceholder {
		t.Errorf("list = %v", list)
	}
}

func TestRedactor_AddPattern(t *testing.T) {
	t.Parallel()

	r := &Redactor{}
	r.AddPattern(regexp.MustCompile(`seed-[0-9]+`))
	if got := r.Redact("use seed-42"); got != "use "+RedactPlaceholder {
		t.Errorf("Redact() = %q", got)
	}
}

func TestIsSecretKey(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"private_key":   true,
		"keypair_path":  true,
		"Authorization": true,
		"lamports":      false,
		"to":            false,
	} {
		if got := IsSecretKey(name); got != want {
			t.Errorf("IsSecretKey(%q) = %v, want %v", name, got, want)
		}
	}
}
