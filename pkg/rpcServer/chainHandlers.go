package rpcServer

import (
	"net/http"

	"github.com/Layr-Labs/rewards-engine/internal/version"
	"github.com/Layr-Labs/rewards-engine/pkg/admin"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AboutResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (rpc *RpcServer) About(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &AboutResponse{
		Version: version.GetVersion(),
		Commit:  version.GetCommit(),
	})
}

func (rpc *RpcServer) ListChains(w http.ResponseWriter, r *http.Request) {
	chains, err := rpc.adminService.ListChains(r.Context())
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

func (rpc *RpcServer) ListUnconfiguredChains(w http.ResponseWriter, r *http.Request) {
	chains, err := rpc.adminService.ListUnconfiguredChains(r.Context())
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chains)
}

type UpdateApyRequest struct {
	Apy *decimal.Decimal `json:"apy"`
}

// UpdateApy sets the rate of {chain}; "all" updates every chain.
func (rpc *RpcServer) UpdateApy(w http.ResponseWriter, r *http.Request) {
	var req UpdateApyRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if req.Apy == nil {
		rpc.writeError(w, r, validation.New("apy", "is required"))
		return
	}
	res, err := rpc.adminService.UpdateApy(r.Context(), chi.URLParam(r, "chain"), *req.Apy)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rpc *RpcServer) setChainActive(w http.ResponseWriter, r *http.Request, active bool) {
	cfg, err := rpc.adminService.SetChainActive(r.Context(), chi.URLParam(r, "chain"), active)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (rpc *RpcServer) EnableChain(w http.ResponseWriter, r *http.Request) {
	rpc.setChainActive(w, r, true)
}

func (rpc *RpcServer) DisableChain(w http.ResponseWriter, r *http.Request) {
	rpc.setChainActive(w, r, false)
}

type SetBankWalletRequest struct {
	Address string `json:"address"`
}

func (rpc *RpcServer) SetBankWallet(w http.ResponseWriter, r *http.Request) {
	var req SetBankWalletRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	cfg, err := rpc.adminService.SetBankWallet(r.Context(), chi.URLParam(r, "chain"), req.Address)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type BatchSetBankWalletsRequest struct {
	Assignments []*admin.BankWalletAssignment `json:"assignments"`
}

// BatchSetBankWallets always answers 200 once the body parses; each entry carries
// its own outcome.
func (rpc *RpcServer) BatchSetBankWallets(w http.ResponseWriter, r *http.Request) {
	var req BatchSetBankWalletsRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	results, err := rpc.adminService.BatchSetBankWallets(r.Context(), req.Assignments)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
