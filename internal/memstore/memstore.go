// Package memstore provides an in-process ledger and transaction log.
//
// It has the same semantics as the Postgres repositories and is used to run the
// transfer coordinator without a database.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/shopspring/decimal"
)

type txKey struct{}

// Store keeps accounts and transfers in memory.
type Store struct {
	mu        sync.Mutex
	accounts  map[int64]domain.Account
	transfers []domain.Transfer
	byRef     map[string]int
	nextID    int64
	now       func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[int64]domain.Account),
		byRef:    make(map[string]int),
		now:      time.Now,
	}
}

// Accounts returns the account repository backed by s.
func (s *Store) Accounts() *AccountRepo {
	return &AccountRepo{s: s}
}

// Transfers returns the transfer repository backed by s.
func (s *Store) Transfers() *TransferRepo {
	return &TransferRepo{s: s}
}

// ExecTx runs fn while holding the store exclusively.
//
// Changes made by fn are discarded when it returns an error.
func (s *Store) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[int64]domain.Account, len(s.accounts))
	for id, a := range s.accounts {
		accounts[id] = a
	}

	transfers := len(s.transfers)
	nextID := s.nextID

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.accounts = accounts

		for _, t := range s.transfers[transfers:] {
			delete(s.byRef, t.ReferenceCode)
		}

		s.transfers = s.transfers[:transfers]
		s.nextID = nextID

		return err
	}

	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// lock takes the store mutex unless ctx already runs inside ExecTx.
func (s *Store) lock(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}

	s.mu.Lock()

	return s.mu.Unlock
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// CreateAccount opens an account with the given balance.
func (s *Store) CreateAccount(ctx context.Context, owner string, balance decimal.Decimal) (domain.Account, error) {
	if balance.IsNegative() {
		return domain.Account{}, domain.ErrInvalidBalance
	}

	defer s.lock(ctx)()

	now := s.now()
	a := domain.Account{
		ID:        s.id(),
		Owner:     owner,
		Balance:   balance,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.accounts[a.ID] = a

	return a, nil
}

// AccountRepo is the in-memory ledger store.
type AccountRepo struct {
	s *Store
}

// Create opens an account.
func (r *AccountRepo) Create(ctx context.Context, owner string, balance decimal.Decimal) (domain.Account, error) {
	return r.s.CreateAccount(ctx, owner, balance)
}

// Get returns the account with the given id.
func (r *AccountRepo) Get(ctx context.Context, id int64) (domain.Account, error) {
	defer r.s.lock(ctx)()

	a, ok := r.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

// List returns accounts ordered by id.
func (r *AccountRepo) List(ctx context.Context, limit, offset int32) ([]domain.Account, error) {
	defer r.s.lock(ctx)()

	items := make([]domain.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		items = append(items, a)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return page(items, limit, offset), nil
}

// Debit withdraws the amount if the version matches and funds suffice.
func (r *AccountRepo) Debit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, int64, error) {
	defer r.s.lock(ctx)()

	a, err := r.s.checkVersion(arg)
	if err != nil {
		return domain.Account{}, 0, err
	}

	if a.Balance.LessThan(arg.Amount) {
		return a, 0, nil
	}

	return r.s.apply(a, arg.Amount.Neg()), 1, nil
}

// Credit deposits the amount if the version matches.
func (r *AccountRepo) Credit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, error) {
	defer r.s.lock(ctx)()

	a, err := r.s.checkVersion(arg)
	if err != nil {
		return domain.Account{}, err
	}

	return r.s.apply(a, arg.Amount), nil
}

func (s *Store) checkVersion(arg domain.BalanceUpdateParams) (domain.Account, error) {
	a, ok := s.accounts[arg.ID]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	if a.Version != arg.Version {
		return domain.Account{}, domain.ErrConcurrencyConflict
	}

	return a, nil
}

func (s *Store) apply(a domain.Account, delta decimal.Decimal) domain.Account {
	a.Balance = a.Balance.Add(delta)
	a.Version++
	a.UpdatedAt = s.now()
	s.accounts[a.ID] = a

	return a
}

// TransferRepo is the in-memory transaction log.
type TransferRepo struct {
	s *Store
}

// Create appends the transfer record.
func (r *TransferRepo) Create(ctx context.Context, arg domain.CreateTransferParams) (domain.Transfer, error) {
	if !arg.Amount.IsPositive() {
		return domain.Transfer{}, domain.ErrInvalidAmount
	}

	defer r.s.lock(ctx)()

	if _, ok := r.s.byRef[arg.ReferenceCode]; ok {
		return domain.Transfer{}, domain.ErrDuplicateReference
	}

	_, srcOK := r.s.accounts[arg.SourceAccountID]
	_, dstOK := r.s.accounts[arg.DestinationAccountID]

	if !srcOK || !dstOK {
		return domain.Transfer{}, domain.ErrAccountNotFound
	}

	t := domain.Transfer{
		ID:                   r.s.id(),
		SourceAccountID:      arg.SourceAccountID,
		DestinationAccountID: arg.DestinationAccountID,
		Amount:               arg.Amount,
		Status:               arg.Status,
		ReferenceCode:        arg.ReferenceCode,
		CreatedAt:            r.s.now(),
	}

	r.s.byRef[t.ReferenceCode] = len(r.s.transfers)
	r.s.transfers = append(r.s.transfers, t)

	return t, nil
}

// Get returns the transfer with the given id.
func (r *TransferRepo) Get(ctx context.Context, id int64) (domain.Transfer, error) {
	defer r.s.lock(ctx)()

	for _, t := range r.s.transfers {
		if t.ID == id {
			return t, nil
		}
	}

	return domain.Transfer{}, domain.ErrTransferNotFound
}

// GetByReferenceCode returns the transfer with the given reference code.
func (r *TransferRepo) GetByReferenceCode(ctx context.Context, code string) (domain.Transfer, error) {
	defer r.s.lock(ctx)()

	i, ok := r.s.byRef[code]
	if !ok {
		return domain.Transfer{}, domain.ErrTransferNotFound
	}

	return r.s.transfers[i], nil
}

// List returns the transfers sent or received by the account.
func (r *TransferRepo) List(ctx context.Context, arg domain.ListTransfersParams) ([]domain.Transfer, error) {
	defer r.s.lock(ctx)()

	var items []domain.Transfer

	for _, t := range r.s.transfers {
		if t.SourceAccountID == arg.AccountID || t.DestinationAccountID == arg.AccountID {
			items = append(items, t)
		}
	}

	return page(items, arg.Limit, arg.Offset), nil
}

// Count returns the number of transfer records.
func (r *TransferRepo) Count() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return len(r.s.transfers)
}

func page[T any](items []T, limit, offset int32) []T {
	if limit < 0 || offset < 0 || int(offset) >= len(items) {
		return []T{}
	}

	items = items[offset:]

	if int(limit) < len(items) {
		items = items[:limit]
	}

	return items
}
