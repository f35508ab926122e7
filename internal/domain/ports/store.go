package ports

// Store bundles the transaction manager with every repository so adapters
// can be swapped as one unit.
type Store struct {
	Tx         TransactionManager
	Statements StatementRepository
	Items      StatementItemRepository
	Users      UserRepository
	Payouts    PayoutRepository
	Credits    CreditRepository
	Invoices   InvoiceRepository
}
