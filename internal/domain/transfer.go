package domain

import (
	"time"

	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/shopspring/decimal"
)

var (
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errorspkg.New(errorspkg.KindNotFound, "TRANSFER_NOT_FOUND", "transfer not found")
	// ErrDuplicateReference indicates that a transfer with the reference code already exists.
	ErrDuplicateReference = errorspkg.New(errorspkg.KindDuplicate, "DUPLICATE_TRANSACTION", "transfer with the reference code already exists")
	// ErrLockAcquisition indicates that the account locks could not be taken in time.
	ErrLockAcquisition = errorspkg.New(errorspkg.KindLockUnavailable, "LOCK_ACQUISITION_FAILED", "accounts are busy, try again later")
	// ErrInvalidAmount indicates non positive amount.
	ErrInvalidAmount = errorspkg.New(errorspkg.KindInvalid, "INVALID_AMOUNT", "amount must be positive")
	// ErrSameAccount indicates a transfer from an account to itself.
	ErrSameAccount = errorspkg.New(errorspkg.KindInvalid, "SAME_ACCOUNT", "source and destination accounts must differ")
	// ErrInvalidReference indicates an empty reference code.
	ErrInvalidReference = errorspkg.New(errorspkg.KindInvalid, "INVALID_REFERENCE", "reference code is required")
)

// Status is the state of a transfer record.
type Status string

// Transfer statuses.
const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Response messages.
const (
	MessageTransferSuccessful = "Transfer successful"
	MessageDuplicateTransfer  = "Duplicate transaction - returning existing state"
)

// MaxReferenceCodeLength is the longest accepted reference code.
const MaxReferenceCodeLength = 64

// Transfers pagination limits.
const (
	DefaultTransfersPageSize = 10
	MaxTransfersPageSize     = 100
)

// Transfer holds transfer data between two accounts.
type Transfer struct {
	ID                   int64           `json:"id"`
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"` // must be positive
	Status               Status          `json:"status"`
	ReferenceCode        string          `json:"reference_code"`
	CreatedAt            time.Time       `json:"created_at"`
}

// CreateTransferParams is the input data to append a transfer record.
type CreateTransferParams struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Status               Status
	ReferenceCode        string
}

// ListTransfersParams is the input data to get transfers touching an account.
type ListTransfersParams struct {
	AccountID int64
	Limit     int32
	Offset    int32
}

// TransferRequest is the input of the transfer operation.
type TransferRequest struct {
	SourceAccountID      int64           `json:"source_account_id" binding:"required,min=1"`
	DestinationAccountID int64           `json:"destination_account_id" binding:"required,min=1"`
	Amount               decimal.Decimal `json:"amount" binding:"positive_amount"`
	ReferenceCode        string          `json:"reference_code" binding:"required,max=64"`
}

// TransferResponse is the result of the transfer operation.
type TransferResponse struct {
	TransactionID      int64           `json:"transaction_id"`
	ReferenceCode      string          `json:"reference_code"`
	SourceBalanceAfter decimal.Decimal `json:"source_balance_after"`
	Message            string          `json:"message"`
}

// TransferCompleted is the event emitted after a transfer is committed.
type TransferCompleted struct {
	TransactionID        int64           `json:"transaction_id"`
	ReferenceCode        string          `json:"reference_code"`
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	OccurredAt           time.Time       `json:"occurred_at"`
}
