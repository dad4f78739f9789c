// Package transferservice manages business logic layer of transfers.
package transferservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-petr/fund-transfer/internal/accountlock"
	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/internal/eventpublisher"
	"github.com/go-petr/fund-transfer/internal/metrics"
	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/rs/zerolog"
)

//go:generate mockgen -source service.go -destination service_mock.go -package transferservice

// AccountRepo provides the ledger operations needed by transfer service layer.
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
	Debit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, int64, error)
	Credit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, error)
}

// TransferRepo provides the transaction log operations needed by transfer service layer.
type TransferRepo interface {
	Get(ctx context.Context, id int64) (domain.Transfer, error)
	GetByReferenceCode(ctx context.Context, code string) (domain.Transfer, error)
	Create(ctx context.Context, arg domain.CreateTransferParams) (domain.Transfer, error)
	List(ctx context.Context, arg domain.ListTransfersParams) ([]domain.Transfer, error)
}

// TxManager runs fn atomically. Repositories called with the ctx passed to fn join the transaction.
type TxManager interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Locker takes the locks of both transfer accounts.
type Locker interface {
	AcquirePair(ctx context.Context, sourceID, destinationID int64) (*accountlock.Pair, error)
}

// Metrics records transfer timings.
type Metrics interface {
	ObserveTransfer(ctx context.Context, d time.Duration, outcome string)
	ObserveLockAcquisition(ctx context.Context, d time.Duration)
}

// Publisher emits events about committed transfers.
type Publisher interface {
	TransferCompleted(ctx context.Context, event domain.TransferCompleted) error
}

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 100 * time.Millisecond
)

// Option configures Service.
type Option func(*Service)

// WithMaxAttempts sets how many times a conflicting execution is tried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the pause between two execution attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.retryDelay = d
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// Service facilitates transfer service layer logic.
type Service struct {
	accounts    AccountRepo
	transfers   TransferRepo
	txManager   TxManager
	locks       Locker
	metrics     Metrics
	publisher   Publisher
	maxAttempts int
	retryDelay  time.Duration
}

// New returns transfer service struct to manage transfer bussines logic.
func New(accounts AccountRepo, transfers TransferRepo, txm TxManager, locks Locker, opts ...Option) *Service {
	s := &Service{
		accounts:    accounts,
		transfers:   transfers,
		txManager:   txm,
		locks:       locks,
		metrics:     metrics.NewNop(),
		publisher:   eventpublisher.Nop{},
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func validate(req domain.TransferRequest) error {
	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	if req.SourceAccountID == req.DestinationAccountID {
		return domain.ErrSameAccount
	}

	if strings.TrimSpace(req.ReferenceCode) == "" || len(req.ReferenceCode) > domain.MaxReferenceCodeLength {
		return domain.ErrInvalidReference
	}

	return nil
}

// Transfer moves the amount from the source to the destination account exactly once per reference code.
//
// A request with an already used reference code returns the existing transfer and changes nothing.
// Otherwise both account locks are taken and the ledger mutation with the transfer record is
// executed in one transaction, retried on concurrent modification while the locks are held.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error) {
	start := time.Now()
	outcome := metrics.OutcomeError

	defer func() {
		s.metrics.ObserveTransfer(ctx, time.Since(start), outcome)
	}()

	l := zerolog.Ctx(ctx).With().Str("reference_code", req.ReferenceCode).Logger()
	ctx = l.WithContext(ctx)

	if err := validate(req); err != nil {
		l.Info().Err(err).Send()
		return domain.TransferResponse{}, err
	}

	existing, err := s.transfers.GetByReferenceCode(ctx, req.ReferenceCode)
	if err == nil {
		outcome = metrics.OutcomeDuplicate
		return s.duplicate(ctx, existing)
	}

	if !errors.Is(err, domain.ErrTransferNotFound) {
		return domain.TransferResponse{}, err
	}

	lockStart := time.Now()
	pair, err := s.locks.AcquirePair(ctx, req.SourceAccountID, req.DestinationAccountID)
	s.metrics.ObserveLockAcquisition(ctx, time.Since(lockStart))

	if err != nil {
		return domain.TransferResponse{}, err
	}
	defer pair.Release(ctx)

	transfer, source, err := s.executeWithRetry(ctx, req)
	if errors.Is(err, domain.ErrDuplicateReference) {
		// Someone else recorded the reference code between our lookup and insert.
		existing, err := s.transfers.GetByReferenceCode(ctx, req.ReferenceCode)
		if err != nil {
			return domain.TransferResponse{}, err
		}

		outcome = metrics.OutcomeDuplicate

		return s.duplicate(ctx, existing)
	}

	if err != nil {
		return domain.TransferResponse{}, err
	}

	outcome = metrics.OutcomeSuccess

	l.Info().
		Int64("transaction_id", transfer.ID).
		Int64("source_account_id", transfer.SourceAccountID).
		Int64("destination_account_id", transfer.DestinationAccountID).
		Stringer("amount", transfer.Amount).
		Msg("transfer completed")

	s.publish(ctx, transfer)

	return domain.TransferResponse{
		TransactionID:      transfer.ID,
		ReferenceCode:      transfer.ReferenceCode,
		SourceBalanceAfter: source.Balance,
		Message:            domain.MessageTransferSuccessful,
	}, nil
}

func (s *Service) duplicate(ctx context.Context, existing domain.Transfer) (domain.TransferResponse, error) {
	source, err := s.accounts.Get(ctx, existing.SourceAccountID)
	if err != nil {
		return domain.TransferResponse{}, err
	}

	zerolog.Ctx(ctx).Info().Int64("transaction_id", existing.ID).Msg("duplicate transfer request")

	return domain.TransferResponse{
		TransactionID:      existing.ID,
		ReferenceCode:      existing.ReferenceCode,
		SourceBalanceAfter: source.Balance,
		Message:            domain.MessageDuplicateTransfer,
	}, nil
}

func (s *Service) executeWithRetry(ctx context.Context, req domain.TransferRequest) (domain.Transfer, domain.Account, error) {
	l := zerolog.Ctx(ctx)

	// Once writing starts an attempt runs to commit or rollback even if the caller goes away.
	execCtx := context.WithoutCancel(ctx)

	for attempt := 1; ; attempt++ {
		transfer, source, err := s.execute(execCtx, req)
		if err == nil {
			return transfer, source, nil
		}

		if errorspkg.KindOf(err) != errorspkg.KindConflict {
			return domain.Transfer{}, domain.Account{}, err
		}

		l.Warn().Err(err).Int("attempt", attempt).Msg("concurrent modification")

		if attempt >= s.maxAttempts {
			return domain.Transfer{}, domain.Account{},
				fmt.Errorf("transfer gave up after %d attempts: %w", attempt, domain.ErrConcurrencyConflict)
		}

		if err := sleep(ctx, s.retryDelay); err != nil {
			return domain.Transfer{}, domain.Account{}, err
		}
	}
}

// execute applies the transfer in a single transaction and returns the record with the debited source account.
func (s *Service) execute(ctx context.Context, req domain.TransferRequest) (domain.Transfer, domain.Account, error) {
	var (
		transfer domain.Transfer
		source   domain.Account
	)

	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		src, err := s.accounts.Get(ctx, req.SourceAccountID)
		if err != nil {
			return err
		}

		dst, err := s.accounts.Get(ctx, req.DestinationAccountID)
		if err != nil {
			return err
		}

		debited, applied, err := s.accounts.Debit(ctx, domain.BalanceUpdateParams{
			ID:      src.ID,
			Amount:  req.Amount,
			Version: src.Version,
		})
		if err != nil {
			return err
		}

		if applied == 0 {
			zerolog.Ctx(ctx).Info().
				Int64("account_id", src.ID).
				Stringer("balance", debited.Balance).
				Stringer("amount", req.Amount).
				Msg("insufficient balance")

			return domain.ErrInsufficientBalance
		}

		_, err = s.accounts.Credit(ctx, domain.BalanceUpdateParams{
			ID:      dst.ID,
			Amount:  req.Amount,
			Version: dst.Version,
		})
		if err != nil {
			return err
		}

		transfer, err = s.transfers.Create(ctx, domain.CreateTransferParams{
			SourceAccountID:      src.ID,
			DestinationAccountID: dst.ID,
			Amount:               req.Amount,
			Status:               domain.StatusSuccess,
			ReferenceCode:        req.ReferenceCode,
		})
		if err != nil {
			return err
		}

		source = debited

		return nil
	})

	return transfer, source, err
}

func (s *Service) publish(ctx context.Context, t domain.Transfer) {
	event := domain.TransferCompleted{
		TransactionID:        t.ID,
		ReferenceCode:        t.ReferenceCode,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
		Amount:               t.Amount,
		OccurredAt:           t.CreatedAt,
	}

	if err := s.publisher.TransferCompleted(ctx, event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("publish transfer.completed")
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Get returns the transfer with the given id.
func (s *Service) Get(ctx context.Context, id int64) (domain.Transfer, error) {
	return s.transfers.Get(ctx, id)
}

// GetByReferenceCode returns the transfer recorded for the reference code.
func (s *Service) GetByReferenceCode(ctx context.Context, code string) (domain.Transfer, error) {
	return s.transfers.GetByReferenceCode(ctx, code)
}

// List returns a page of transfers sent or received by the account.
func (s *Service) List(ctx context.Context, accountID int64, pageSize, pageID int32) ([]domain.Transfer, error) {
	if _, err := s.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = domain.DefaultTransfersPageSize
	}

	if pageSize > domain.MaxTransfersPageSize {
		pageSize = domain.MaxTransfersPageSize
	}

	if pageID < 1 {
		pageID = 1
	}

	return s.transfers.List(ctx, domain.ListTransfersParams{
		AccountID: accountID,
		Limit:     pageSize,
		Offset:    (pageID - 1) * pageSize,
	})
}
