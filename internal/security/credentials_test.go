package security

import (
	"slices"
	"sync"
	"testing"
)

func TestCredentialStore(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set("solana.private_key", "4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP")
	store.Set("gateway.bearer_token", "v1")
	store.Set("gateway.bearer_token", "v2")

	if v, ok := store.Get("solana.private_key"); !ok || v != "4wBqpZM9xaSheZzJSMawUHDgZ7miWfSsxmfVF5jJpYP" {
		t.Errorf("Get(private_key) = %q, %v", v, ok)
	}
	if v, _ := store.Get("gateway.bearer_token"); v != "v2" {
		t.Errorf("overwrite: got %q, want v2", v)
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("missing credential reported present")
	}

	want := []string{"gateway.bearer_token", "solana.private_key"}
	if got := store.Names(); !slices.Equal(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestCredentialStore_EmptyValueForgets(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set("gateway.basic_pass", "pw")
	store.Set("gateway.basic_pass", "")
	store.Set("gateway.bearer_token", "")

	if len(store.Names()) != 0 {
		t.Errorf("Names = %v, want none", store.Names())
	}
	if len(store.Values()) != 0 {
		t.Errorf("Values = %v, want none", store.Values())
	}
}

func TestCredentialStore_Values(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	store.Set("a", "val-a")
	store.Set("c", "val-c")

	got := store.Values()
	slices.Sort(got)
	if !slices.Equal(got, []string{"val-a", "val-c"}) {
		t.Errorf("Values = %v", got)
	}
}

func TestCredentialStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := NewCredentialStore()
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%10 == 0 {
				store.Set("gateway.bearer_token", "")
			} else {
				store.Set("gateway.bearer_token", "value")
			}
			store.Get("gateway.bearer_token")
			store.Names()
			store.Values()
		}()
	}
	wg.Wait()
}
