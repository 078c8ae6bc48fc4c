package auth

import (
	"sync"
	"time"
)

// Binding is the connection currently holding an account.
type Binding struct {
	ConnID    string
	BoundAt   time.Time
	ExpiresAt time.Time
}

// Registry tracks one live connection per account.
// Thread-safe через sync.Map.
type Registry struct {
	bindings sync.Map // account → Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Bind attaches account to connID. If another connection held the account,
// its ID is returned so the caller can disconnect it.
func (r *Registry) Bind(id Identity, connID string) (previous string, replaced bool) {
	b := Binding{ConnID: connID, BoundAt: time.Now(), ExpiresAt: id.ExpiresAt}
	old, loaded := r.bindings.Swap(id.Account, b)
	if !loaded {
		return "", false
	}
	prev := old.(Binding).ConnID
	if prev == connID {
		return "", false
	}
	return prev, true
}

// Unbind releases account if it is still held by connID.
func (r *Registry) Unbind(account, connID string) bool {
	val, ok := r.bindings.Load(account)
	if !ok || val.(Binding).ConnID != connID {
		return false
	}
	return r.bindings.CompareAndDelete(account, val)
}

// Lookup returns the binding for account.
func (r *Registry) Lookup(account string) (Binding, bool) {
	val, ok := r.bindings.Load(account)
	if !ok {
		return Binding{}, false
	}
	return val.(Binding), true
}

// Count returns the number of bound accounts.
func (r *Registry) Count() int {
	n := 0
	r.bindings.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
