// Package mock provides in-memory capability adapters for development and
// tests. Each adapter can be told to fail so that settlement compensation
// paths can be exercised.
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/factoring/capability"
	"github.com/xraph/factoring/id"
)

var (
	// ErrInjected is returned by an adapter configured to fail.
	ErrInjected = errors.New("mock: injected failure")

	// ErrNoFunds is returned when a payer's balance is too small.
	ErrNoFunds = errors.New("mock: insufficient balance")

	// ErrNotOwner is returned when a token is moved by someone other than its owner.
	ErrNotOwner = errors.New("mock: not token owner")
)

// Compile-time interface checks.
var (
	_ capability.Ownership       = (*Ownership)(nil)
	_ capability.Payments        = (*Payments)(nil)
	_ capability.BalanceReporter = (*Payments)(nil)
	_ capability.Access          = (*Access)(nil)
	_ capability.ChainRegistry   = (*Chains)(nil)
)

// ──────────────────────────────────────────────────
// Ownership
// ──────────────────────────────────────────────────

// Ownership is an in-memory token ownership registry.
type Ownership struct {
	mu        sync.Mutex
	owners    map[id.InvoiceID]string
	failAfter int // fail the Nth transfer from now; 0 = never
	calls     int
}

// NewOwnership creates an empty ownership registry.
func NewOwnership() *Ownership {
	return &Ownership{owners: make(map[id.InvoiceID]string)}
}

// SetOwner records principal as the owner of tokenID.
func (o *Ownership) SetOwner(tokenID id.InvoiceID, principal string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owners[tokenID] = principal
}

// FailTransfer makes the nth subsequent Transfer call fail. n <= 0 disables
// failure injection.
func (o *Ownership) FailTransfer(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failAfter = n
	o.calls = 0
}

// OwnerOf implements capability.Ownership.
func (o *Ownership) OwnerOf(_ context.Context, tokenID id.InvoiceID) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	owner, ok := o.owners[tokenID]
	if !ok {
		return "", fmt.Errorf("mock: token %s has no owner", tokenID)
	}
	return owner, nil
}

// Transfer implements capability.Ownership.
func (o *Ownership) Transfer(_ context.Context, tokenID id.InvoiceID, from, to string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failAfter > 0 {
		o.calls++
		if o.calls == o.failAfter {
			return ErrInjected
		}
	}
	if o.owners[tokenID] != from {
		return ErrNotOwner
	}
	o.owners[tokenID] = to
	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// Payments is an in-memory balance sheet.
type Payments struct {
	mu        sync.Mutex
	balances  map[string]uint64
	failAfter int
	calls     int
}

// NewPayments creates an empty balance sheet.
func NewPayments() *Payments {
	return &Payments{balances: make(map[string]uint64)}
}

// Fund credits amount to principal.
func (p *Payments) Fund(principal string, amount uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[principal] += amount
}

// FailTransfer makes the nth subsequent Transfer call fail. n <= 0 disables
// failure injection.
func (p *Payments) FailTransfer(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failAfter = n
	p.calls = 0
}

// BalanceOf implements capability.BalanceReporter.
func (p *Payments) BalanceOf(_ context.Context, principal string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[principal], nil
}

// Transfer implements capability.Payments.
func (p *Payments) Transfer(_ context.Context, amount uint64, from, to string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAfter > 0 {
		p.calls++
		if p.calls == p.failAfter {
			return ErrInjected
		}
	}
	if p.balances[from] < amount {
		return ErrNoFunds
	}
	p.balances[from] -= amount
	p.balances[to] += amount
	return nil
}

// ──────────────────────────────────────────────────
// Access
// ──────────────────────────────────────────────────

// Access is an in-memory role table.
type Access struct {
	mu    sync.RWMutex
	roles map[string]map[string]bool
}

// NewAccess creates an empty role table.
func NewAccess() *Access {
	return &Access{roles: make(map[string]map[string]bool)}
}

// Grant adds principal to each role.
func (a *Access) Grant(principal string, roles ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, role := range roles {
		if a.roles[role] == nil {
			a.roles[role] = make(map[string]bool)
		}
		a.roles[role][principal] = true
	}
}

// Revoke removes principal from role.
func (a *Access) Revoke(principal, role string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.roles[role], principal)
}

// HasRole implements capability.Access.
func (a *Access) HasRole(_ context.Context, role, principal string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.roles[role][principal], nil
}

// ──────────────────────────────────────────────────
// Chains
// ──────────────────────────────────────────────────

// Chains is an in-memory chain registry.
type Chains struct {
	mu      sync.RWMutex
	active  map[uint64]bool
	bridges map[uint64]string
}

// NewChains creates a registry with the given chains active and no bridges.
func NewChains(active ...uint64) *Chains {
	c := &Chains{
		active:  make(map[uint64]bool),
		bridges: make(map[uint64]string),
	}
	for _, chainID := range active {
		c.active[chainID] = true
	}
	return c
}

// SetActive marks chainID active or inactive.
func (c *Chains) SetActive(chainID uint64, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[chainID] = active
}

// SetBridge records the bridge address for chainID.
func (c *Chains) SetBridge(chainID uint64, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bridges[chainID] = address
}

// IsChainActive implements capability.ChainRegistry.
func (c *Chains) IsChainActive(_ context.Context, chainID uint64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active[chainID], nil
}

// BridgeAddress implements capability.ChainRegistry.
func (c *Chains) BridgeAddress(_ context.Context, chainID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bridges[chainID], nil
}
