package rpcServer

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/rewards-engine/pkg/claims"
	"github.com/Layr-Labs/rewards-engine/pkg/service/rewardsDataService"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func rewardQueryFromRequest(r *http.Request) (*rewardsDataService.RewardQuery, error) {
	pagination, err := queryPagination(r)
	if err != nil {
		return nil, err
	}
	q := r.URL.Query()
	return &rewardsDataService.RewardQuery{
		Status:     q.Get("status"),
		Chain:      q.Get("chain"),
		UserHandle: q.Get("userHandle"),
		Pagination: pagination,
	}, nil
}

// ListRewards returns a page of rewards with per-status sums over the whole filter.
func (rpc *RpcServer) ListRewards(w http.ResponseWriter, r *http.Request) {
	query, err := rewardQueryFromRequest(r)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	list, err := rpc.rewardsDataService.ListRewards(r.Context(), query)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (rpc *RpcServer) GetReward(w http.ResponseWriter, r *http.Request) {
	record, err := rpc.rewardsDataService.GetReward(r.Context(), chi.URLParam(r, "rewardId"))
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// ExportRewards streams the filtered rewards as CSV. Pagination is ignored.
func (rpc *RpcServer) ExportRewards(w http.ResponseWriter, r *http.Request) {
	query, err := rewardQueryFromRequest(r)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rpc.rewardsDataService.ExportRewardsCsv(r.Context(), query, &buf); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "rewards.csv"))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		rpc.logger.Sugar().Errorw("Failed to write rewards export", zap.Error(err))
	}
}

type ClaimRewardRequest struct {
	UserHandle     string `json:"userHandle"`
	TransactionRef string `json:"transactionRef"`
	WalletAddress  string `json:"walletAddress"`
	WalletCategory string `json:"walletCategory"`
}

func (rpc *RpcServer) ClaimReward(w http.ResponseWriter, r *http.Request) {
	var req ClaimRewardRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	record, err := rpc.claimProcessor.Claim(r.Context(), &claims.ClaimRequest{
		UserHandle:     req.UserHandle,
		RewardId:       chi.URLParam(r, "rewardId"),
		TransactionRef: req.TransactionRef,
		WalletAddress:  req.WalletAddress,
		WalletCategory: req.WalletCategory,
	})
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type SettleRewardsRequest struct {
	RewardIds      []string `json:"rewardIds"`
	TransactionRef string   `json:"transactionRef"`
	WalletAddress  string   `json:"walletAddress"`
	WalletCategory string   `json:"walletCategory"`
}

func (rpc *RpcServer) SettleRewards(w http.ResponseWriter, r *http.Request) {
	var req SettleRewardsRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	res, err := rpc.adminService.SettleRewards(r.Context(), &claims.BatchSettlement{
		RewardIds:      req.RewardIds,
		TransactionRef: req.TransactionRef,
		WalletAddress:  req.WalletAddress,
		WalletCategory: req.WalletCategory,
	})
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
