// Package transferdelivery manages delivery layer of transfers.
package transferdelivery

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/pkg/jsonresponse"
)

// Service provides service layer interface needed by transfer delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package transferdelivery
type Service interface {
	Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferResponse, error)
	GetByReferenceCode(ctx context.Context, code string) (domain.Transfer, error)
	List(ctx context.Context, accountID int64, pageSize, pageID int32) ([]domain.Transfer, error)
}

// Handler facilitates transfer delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns transfer handler.
func NewHandler(ts Service) *Handler {
	return &Handler{
		service: ts,
	}
}

type response struct {
	Data domain.TransferResponse `json:"data"`
}

// Create handles http request to move funds between two accounts.
//
// A resubmitted reference code answers with the already recorded transfer.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req domain.TransferRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.InvalidRequest(err))

		return
	}

	result, err := h.service.Transfer(ctx, req)
	if err != nil {
		l.Info().Err(err).Int64("source_account_id", req.SourceAccountID).
			Int64("destination_account_id", req.DestinationAccountID).Send()
		gctx.JSON(jsonresponse.FromError(err))

		return
	}

	gctx.JSON(http.StatusOK, response{Data: result})
}

type getRequest struct {
	ReferenceCode string `uri:"reference_code" binding:"required,max=64"`
}

type data struct {
	Transfer domain.Transfer `json:"transfer"`
}

type responseTransfer struct {
	Data data `json:"data"`
}

// Get handles http request to get the transfer recorded for a reference code.
func (h *Handler) Get(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req getRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.InvalidRequest(err))

		return
	}

	transfer, err := h.service.GetByReferenceCode(ctx, req.ReferenceCode)
	if err != nil {
		gctx.JSON(jsonresponse.FromError(err))
		return
	}

	gctx.JSON(http.StatusOK, responseTransfer{Data: data{transfer}})
}

type listRequest struct {
	AccountID int64 `form:"account_id" binding:"required,min=1"`
	PageID    int32 `form:"page_id" binding:"omitempty,min=1"`
	PageSize  int32 `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type dataTransfers struct {
	Transfers []domain.Transfer `json:"transfers"`
}

type responseTransfers struct {
	Data dataTransfers `json:"data"`
}

// List handles http request to list transfers sent or received by an account.
func (h *Handler) List(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(ctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, jsonresponse.InvalidRequest(err))

		return
	}

	transfers, err := h.service.List(ctx, req.AccountID, req.PageSize, req.PageID)
	if err != nil {
		gctx.JSON(jsonresponse.FromError(err))
		return
	}

	if transfers == nil {
		transfers = []domain.Transfer{}
	}

	gctx.JSON(http.StatusOK, responseTransfers{Data: dataTransfers{transfers}})
}
