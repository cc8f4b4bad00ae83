package rpcServer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Layr-Labs/rewards-engine/pkg/accrual"
	"github.com/Layr-Labs/rewards-engine/pkg/chains"
	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/Layr-Labs/rewards-engine/pkg/distribution"
	"github.com/Layr-Labs/rewards-engine/pkg/rewardRecords"
	"github.com/Layr-Labs/rewards-engine/pkg/service/baseDataService"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"go.uber.org/zap"
)

const maxRequestBodyBytes = 1 << 20

type ErrorBody struct {
	Reason string `json:"reason"`
}

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Response{Success: true, Data: data})
}

func writeErrorStatus(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&Response{Success: false, Error: &ErrorBody{Reason: reason}})
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case validation.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, rewardRecords.ErrRewardNotOwned):
		return http.StatusForbidden
	case errors.Is(err, chains.ErrChainNotFound),
		errors.Is(err, rewardRecords.ErrRewardNotFound),
		errors.Is(err, contributions.ErrContributionNotFound),
		errors.Is(err, distribution.ErrSnapshotNotFound),
		errors.Is(err, distribution.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, rewardRecords.ErrRewardNotPending),
		errors.Is(err, rewardRecords.ErrSettlementReused),
		errors.Is(err, contributions.ErrContributionNotPending),
		errors.Is(err, accrual.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, chains.ErrBankWalletRequired),
		errors.Is(err, chains.ErrUnknownChain),
		errors.Is(err, contributions.ErrBelowMinimumDeposit),
		errors.Is(err, claims.ErrSettlementUnverified),
		errors.Is(err, distribution.ErrNegativeRevenue),
		errors.Is(err, distribution.ErrNegativeHoldings),
		errors.Is(err, distribution.ErrDuplicateHolding),
		errors.Is(err, distribution.ErrInvalidPercentage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (rpc *RpcServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		rpc.logger.Sugar().Errorw("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrorStatus(w, status, "internal error")
		return
	}
	writeErrorStatus(w, status, err.Error())
}

func decodeBody(r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.New("body", "request body is required")
		}
		return validation.New("body", err.Error())
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.Newf(name, "must be an integer, got '%s'", raw)
	}
	return v, nil
}

func queryPagination(r *http.Request) (*baseDataService.Pagination, error) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		return nil, err
	}
	pageSize, err := queryInt(r, "pageSize", baseDataService.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	return (&baseDataService.Pagination{Page: page, PageSize: pageSize}).Normalize(), nil
}
