package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

type statementRepo struct{ s *Store }

func (r *statementRepo) Create(_ context.Context, _ ports.DBTX, st *domain.Statement) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.statements[st.ID]; ok {
			return fmt.Errorf("statement %s already exists", st.ID)
		}
		d.statements[st.ID] = cloneStatement(st)
		d.statementOrder = append(d.statementOrder, st.ID)
		return nil
	})
}

func (r *statementRepo) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.Statement, error) {
	var out *domain.Statement
	r.s.read(func(d *dataset) {
		if st, ok := d.statements[id]; ok {
			out = cloneStatement(st)
		}
	})
	if out == nil {
		return nil, domain.ErrStatementNotFound.WithDetail("statement_id", id)
	}
	return out, nil
}

func (r *statementRepo) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.Statement, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *statementRepo) Update(_ context.Context, _ ports.DBTX, st *domain.Statement) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.statements[st.ID]; !ok {
			return domain.ErrStatementNotFound.WithDetail("statement_id", st.ID)
		}
		d.statements[st.ID] = cloneStatement(st)
		return nil
	})
}

func (r *statementRepo) List(_ context.Context, _ ports.DBTX, f ports.StatementFilter) ([]*domain.Statement, error) {
	var out []*domain.Statement
	r.s.read(func(d *dataset) {
		for _, id := range d.statementOrder {
			st := d.statements[id]
			if f.Status != "" && st.Status != f.Status {
				continue
			}
			if f.PaymentStatus != "" && st.PaymentStatus != f.PaymentStatus {
				continue
			}
			if f.MissingPeriod && st.HasPeriod() {
				continue
			}
			out = append(out, cloneStatement(st))
		}
	})
	return out, nil
}

type itemRepo struct{ s *Store }

func (r *itemRepo) Create(_ context.Context, _ ports.DBTX, item *domain.StatementItem) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.items[item.ID]; ok {
			return fmt.Errorf("statement item %s already exists", item.ID)
		}
		if _, ok := d.statements[item.StatementID]; !ok {
			return domain.ErrStatementNotFound.WithDetail("statement_id", item.StatementID)
		}
		d.items[item.ID] = cloneItem(item)
		d.itemOrder = append(d.itemOrder, item.ID)
		return nil
	})
}

func (r *itemRepo) Update(_ context.Context, _ ports.DBTX, item *domain.StatementItem) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.items[item.ID]; !ok {
			return domain.ErrItemNotFound.WithDetail("item_id", item.ID)
		}
		d.items[item.ID] = cloneItem(item)
		return nil
	})
}

func (r *itemRepo) Delete(_ context.Context, _ ports.DBTX, id string) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.items[id]; !ok {
			return domain.ErrItemNotFound.WithDetail("item_id", id)
		}
		delete(d.items, id)
		d.itemOrder = removeID(d.itemOrder, id)
		return nil
	})
}

func (r *itemRepo) ListByStatement(_ context.Context, _ ports.DBTX, statementID string) ([]*domain.StatementItem, error) {
	var out []*domain.StatementItem
	r.s.read(func(d *dataset) {
		for _, id := range d.itemOrder {
			if item := d.items[id]; item.StatementID == statementID {
				out = append(out, cloneItem(item))
			}
		}
	})
	return out, nil
}

func (r *itemRepo) ListEarnings(_ context.Context, _ ports.DBTX, userID string) ([]ports.EarningRecord, error) {
	var out []ports.EarningRecord
	r.s.read(func(d *dataset) {
		for _, id := range d.itemOrder {
			item := d.items[id]
			if !item.IsVisibleToWriter || item.GetUserID() != userID {
				continue
			}
			st, ok := d.statements[item.StatementID]
			if !ok || !st.CountsTowardLifetime() {
				continue
			}
			out = append(out, ports.EarningRecord{
				ItemID:      item.ID,
				StatementID: item.StatementID,
				WorkTitle:   item.WorkTitle,
				NetRevenue:  item.NetRevenue,
			})
		}
	})
	return out, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.User, error) {
	var out *domain.User
	r.s.read(func(d *dataset) {
		if u, ok := d.users[id]; ok {
			out = cloneUser(u)
		}
	})
	if out == nil {
		return nil, domain.ErrUserNotFound.WithDetail("user_id", id)
	}
	return out, nil
}

func (r *userRepo) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.User, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *userRepo) List(_ context.Context, _ ports.DBTX) ([]*domain.User, error) {
	var out []*domain.User
	r.s.read(func(d *dataset) {
		for _, id := range d.userOrder {
			out = append(out, cloneUser(d.users[id]))
		}
	})
	return out, nil
}

func (r *userRepo) UpdateBalances(_ context.Context, _ ports.DBTX, id string, b domain.Balances) error {
	return r.s.write(func(d *dataset) error {
		u, ok := d.users[id]
		if !ok {
			return domain.ErrUserNotFound.WithDetail("user_id", id)
		}
		next := cloneUser(u)
		next.SetBalances(b)
		d.users[id] = next
		return nil
	})
}

type payoutRepo struct{ s *Store }

func (r *payoutRepo) Create(_ context.Context, _ ports.DBTX, p *domain.PayoutRequest) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.payouts[p.ID]; ok {
			return fmt.Errorf("payout request %s already exists", p.ID)
		}
		d.payouts[p.ID] = clonePayout(p)
		d.payoutOrder = append(d.payoutOrder, p.ID)
		return nil
	})
}

func (r *payoutRepo) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.PayoutRequest, error) {
	var out *domain.PayoutRequest
	r.s.read(func(d *dataset) {
		if p, ok := d.payouts[id]; ok {
			out = clonePayout(p)
		}
	})
	if out == nil {
		return nil, domain.ErrPayoutNotFound.WithDetail("payout_id", id)
	}
	return out, nil
}

func (r *payoutRepo) GetForUpdate(ctx context.Context, tx ports.DBTX, id string) (*domain.PayoutRequest, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *payoutRepo) Update(_ context.Context, _ ports.DBTX, p *domain.PayoutRequest) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.payouts[p.ID]; !ok {
			return domain.ErrPayoutNotFound.WithDetail("payout_id", p.ID)
		}
		d.payouts[p.ID] = clonePayout(p)
		return nil
	})
}

func (r *payoutRepo) ListByUser(_ context.Context, _ ports.DBTX, userID string) ([]*domain.PayoutRequest, error) {
	return r.list(func(p *domain.PayoutRequest) bool { return p.UserID == userID }), nil
}

func (r *payoutRepo) ListByStatus(_ context.Context, _ ports.DBTX, status domain.PayoutStatus) ([]*domain.PayoutRequest, error) {
	return r.list(func(p *domain.PayoutRequest) bool { return p.Status == status }), nil
}

func (r *payoutRepo) list(keep func(*domain.PayoutRequest) bool) []*domain.PayoutRequest {
	var out []*domain.PayoutRequest
	r.s.read(func(d *dataset) {
		for _, id := range d.payoutOrder {
			if p := d.payouts[id]; keep(p) {
				out = append(out, clonePayout(p))
			}
		}
	})
	return out
}

type creditRepo struct{ s *Store }

func (r *creditRepo) Create(_ context.Context, _ ports.DBTX, c *domain.PlacementCredit) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.credits[c.ID]; ok {
			return fmt.Errorf("placement credit %s already exists", c.ID)
		}
		d.credits[c.ID] = cloneCredit(c)
		d.creditOrder = append(d.creditOrder, c.ID)
		return nil
	})
}

func (r *creditRepo) GetByID(_ context.Context, _ ports.DBTX, id string) (*domain.PlacementCredit, error) {
	var out *domain.PlacementCredit
	r.s.read(func(d *dataset) {
		if c, ok := d.credits[id]; ok {
			out = cloneCredit(c)
		}
	})
	if out == nil {
		return nil, domain.ErrCreditNotFound.WithDetail("credit_id", id)
	}
	return out, nil
}

func (r *creditRepo) List(_ context.Context, _ ports.DBTX, unresolvedOnly bool) ([]*domain.PlacementCredit, error) {
	var out []*domain.PlacementCredit
	r.s.read(func(d *dataset) {
		for _, id := range d.creditOrder {
			c := d.credits[id]
			if unresolvedOnly && c.IsResolved() {
				continue
			}
			out = append(out, cloneCredit(c))
		}
	})
	return out, nil
}

func (r *creditRepo) Update(_ context.Context, _ ports.DBTX, c *domain.PlacementCredit) error {
	return r.s.write(func(d *dataset) error {
		if _, ok := d.credits[c.ID]; !ok {
			return domain.ErrCreditNotFound.WithDetail("credit_id", c.ID)
		}
		d.credits[c.ID] = cloneCredit(c)
		return nil
	})
}

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) Create(_ context.Context, _ ports.DBTX, inv *domain.Invoice) error {
	return r.s.write(func(d *dataset) error {
		for _, existing := range d.invoices {
			if existing.Number == inv.Number {
				return fmt.Errorf("invoice number %s already exists", inv.Number)
			}
		}
		d.invoices[inv.ID] = cloneInvoice(inv)
		d.invoiceOrder = append(d.invoiceOrder, inv.ID)
		return nil
	})
}

func (r *invoiceRepo) ExistsForPayout(_ context.Context, _ ports.DBTX, payoutID string) (bool, error) {
	found := false
	r.s.read(func(d *dataset) {
		for _, inv := range d.invoices {
			if inv.PayoutID != nil && *inv.PayoutID == payoutID {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *invoiceRepo) ExistsForStatement(_ context.Context, _ ports.DBTX, statementID, userID string) (bool, error) {
	found := false
	r.s.read(func(d *dataset) {
		for _, inv := range d.invoices {
			if inv.StatementID != nil && *inv.StatementID == statementID && inv.UserID == userID {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *invoiceRepo) ListByUser(_ context.Context, _ ports.DBTX, userID string) ([]*domain.Invoice, error) {
	var out []*domain.Invoice
	r.s.read(func(d *dataset) {
		for _, id := range d.invoiceOrder {
			if inv := d.invoices[id]; inv.UserID == userID {
				out = append(out, cloneInvoice(inv))
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}

var (
	_ ports.StatementRepository     = (*statementRepo)(nil)
	_ ports.StatementItemRepository = (*itemRepo)(nil)
	_ ports.UserRepository          = (*userRepo)(nil)
	_ ports.PayoutRepository        = (*payoutRepo)(nil)
	_ ports.CreditRepository        = (*creditRepo)(nil)
	_ ports.InvoiceRepository       = (*invoiceRepo)(nil)
)
