// Package memory is an in-process implementation of every store port.
//
// Transactions are serialized and roll back by restoring a snapshot taken when
// they begin. Stored records are copied on the way in and on the way out, so
// callers never share memory with the store.
package memory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

type dataset struct {
	statements     map[string]*domain.Statement
	statementOrder []string
	items          map[string]*domain.StatementItem
	itemOrder      []string
	users          map[string]*domain.User
	userOrder      []string
	payouts        map[string]*domain.PayoutRequest
	payoutOrder    []string
	credits        map[string]*domain.PlacementCredit
	creditOrder    []string
	invoices       map[string]*domain.Invoice
	invoiceOrder   []string
}

func newDataset() *dataset {
	return &dataset{
		statements: make(map[string]*domain.Statement),
		items:      make(map[string]*domain.StatementItem),
		users:      make(map[string]*domain.User),
		payouts:    make(map[string]*domain.PayoutRequest),
		credits:    make(map[string]*domain.PlacementCredit),
		invoices:   make(map[string]*domain.Invoice),
	}
}

// snapshot copies the indexes. Records are immutable once stored, so sharing
// the pointers between the live set and the snapshot is safe.
func (d *dataset) snapshot() *dataset {
	return &dataset{
		statements:     copyMap(d.statements),
		statementOrder: append([]string(nil), d.statementOrder...),
		items:          copyMap(d.items),
		itemOrder:      append([]string(nil), d.itemOrder...),
		users:          copyMap(d.users),
		userOrder:      append([]string(nil), d.userOrder...),
		payouts:        copyMap(d.payouts),
		payoutOrder:    append([]string(nil), d.payoutOrder...),
		credits:        copyMap(d.credits),
		creditOrder:    append([]string(nil), d.creditOrder...),
		invoices:       copyMap(d.invoices),
		invoiceOrder:   append([]string(nil), d.invoiceOrder...),
	}
}

func copyMap[T any](m map[string]*T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store holds all data in memory
type Store struct {
	// txMu serializes transactions; mu guards data for individual calls
	txMu sync.Mutex
	mu   sync.RWMutex
	data *dataset
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// Ports returns the store wired into every repository port
func (s *Store) Ports() ports.Store {
	return ports.Store{
		Tx:         s,
		Statements: &statementRepo{s},
		Items:      &itemRepo{s},
		Users:      &userRepo{s},
		Payouts:    &payoutRepo{s},
		Credits:    &creditRepo{s},
		Invoices:   &invoiceRepo{s},
	}
}

// WithTransaction runs fn with exclusive access and restores the prior state if fn fails
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := s.data.snapshot()
	s.mu.RUnlock()

	if err := fn(ctx, nil); err != nil {
		s.mu.Lock()
		s.data = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// WithReadOnlyTransaction runs fn while no write transaction can interleave
func (s *Store) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(ctx, nil)
}

func (s *Store) read(fn func(d *dataset)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// PutUser inserts or replaces a user. Users come from an external directory,
// so the port has no create method; tests and the seed command use this.
func (s *Store) PutUser(u *domain.User) {
	_ = s.write(func(d *dataset) error {
		if _, ok := d.users[u.ID]; !ok {
			d.userOrder = append(d.userOrder, u.ID)
		}
		d.users[u.ID] = cloneUser(u)
		return nil
	})
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i:i], order[i+1:]...)
		}
	}
	return order
}

var _ ports.TransactionManager = (*Store)(nil)
