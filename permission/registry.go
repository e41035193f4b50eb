package permission

import (
	"errors"
	"sync"
)

const maxBits = 64

// Registry maps permission names to bit positions within a [Mask64].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[Permission]int
	bitToName map[int]Permission
	frozen    bool
}

// NewRegistry creates an empty, unfrozen [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[Permission]int),
		bitToName: make(map[int]Permission),
	}
}

// Register assigns the next available bit to the named permission and returns it.
// Must be called before [Registry.Freeze].
func (r *Registry) Register(p Permission) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if p == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if _, exists := r.nameToBit[p]; exists {
		return -1, errors.New("permission already registered: " + string(p))
	}

	nextBit := len(r.nameToBit)
	if nextBit >= maxBits {
		return -1, errors.New("permission limit exceeded")
	}

	r.nameToBit[p] = nextBit
	r.bitToName[nextBit] = p

	return nextBit, nil
}

// Bit returns the bit index for the named permission, or false if not registered.
func (r *Registry) Bit(p Permission) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[p]
	return bit, ok
}

// Name returns the permission for the given bit index, or false if unassigned.
func (r *Registry) Name(bit int) (Permission, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.bitToName[bit]
	return p, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

// Expand lists the permissions set in m, in bit order.
func (r *Registry) Expand(m Mask64) []Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Permission, 0, m.Count())
	for bit := 0; bit < maxBits; bit++ {
		if !m.Has(bit) {
			continue
		}
		if p, ok := r.bitToName[bit]; ok {
			out = append(out, p)
		}
	}
	return out
}
