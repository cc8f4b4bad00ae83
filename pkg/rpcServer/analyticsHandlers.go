package rpcServer

import (
	"net/http"

	"github.com/Layr-Labs/rewards-engine/pkg/service/analyticsDataService"
)

func analyticsFilterFromRequest(r *http.Request) *analyticsDataService.AnalyticsFilter {
	q := r.URL.Query()
	return &analyticsDataService.AnalyticsFilter{
		UserHandle:    q.Get("userHandle"),
		WalletAddress: q.Get("walletAddress"),
		Chain:         q.Get("chain"),
	}
}

func (rpc *RpcServer) GetTotalsByChain(w http.ResponseWriter, r *http.Request) {
	totals, err := rpc.analyticsDataService.TotalsByChain(r.Context(), analyticsFilterFromRequest(r))
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (rpc *RpcServer) GetTotalsByWalletCategory(w http.ResponseWriter, r *http.Request) {
	totals, err := rpc.analyticsDataService.TotalsByWalletCategory(r.Context(), analyticsFilterFromRequest(r))
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (rpc *RpcServer) GetTopContributors(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", analyticsDataService.DefaultTopContributors)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	top, err := rpc.analyticsDataService.TopContributors(r.Context(), analyticsFilterFromRequest(r), limit)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}
