package rpcServer

import (
	"net/http"

	"github.com/Layr-Labs/rewards-engine/pkg/contributions"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type RecordContributionRequest struct {
	UserHandle     string                       `json:"userHandle"`
	WalletAddress  string                       `json:"walletAddress"`
	WalletCategory contributions.WalletCategory `json:"walletCategory"`
	Chain          string                       `json:"chain"`
	DepositTxHash  string                       `json:"depositTxHash"`
	Principal      decimal.Decimal              `json:"principal"`
}

type RecordContributionResponse struct {
	Contribution *contributions.Contribution `json:"contribution"`
	Created      bool                        `json:"created"`
}

// RecordContribution is called by the deposit verifier. Replaying a deposit returns
// the stored contribution with created=false.
func (rpc *RpcServer) RecordContribution(w http.ResponseWriter, r *http.Request) {
	var req RecordContributionRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	c, created, err := rpc.ledger.RecordContribution(r.Context(), &contributions.NewContribution{
		UserHandle:     req.UserHandle,
		WalletAddress:  req.WalletAddress,
		WalletCategory: req.WalletCategory,
		Chain:          req.Chain,
		DepositTxHash:  req.DepositTxHash,
		Principal:      req.Principal,
	})
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, &RecordContributionResponse{Contribution: c, Created: created})
}

func (rpc *RpcServer) VerifyContribution(w http.ResponseWriter, r *http.Request) {
	c, err := rpc.ledger.VerifyContribution(r.Context(), chi.URLParam(r, "contributionId"))
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type RejectContributionRequest struct {
	Reason string `json:"reason"`
}

func (rpc *RpcServer) RejectContribution(w http.ResponseWriter, r *http.Request) {
	var req RejectContributionRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	c, err := rpc.ledger.RejectContribution(r.Context(), chi.URLParam(r, "contributionId"), req.Reason)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (rpc *RpcServer) GetContribution(w http.ResponseWriter, r *http.Request) {
	c, err := rpc.ledger.GetContribution(r.Context(), chi.URLParam(r, "contributionId"))
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (rpc *RpcServer) ListContributionRewards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "contributionId")
	if _, err := rpc.ledger.GetContribution(r.Context(), id); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	records, err := rpc.rewardsDataService.ListRewardsForContribution(r.Context(), id)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
