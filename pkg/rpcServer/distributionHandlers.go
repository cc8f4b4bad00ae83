package rpcServer

import (
	"net/http"

	"github.com/Layr-Labs/rewards-engine/pkg/distribution"
	"github.com/Layr-Labs/rewards-engine/pkg/validation"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type HoldingRequest struct {
	WalletAddress string          `json:"walletAddress"`
	UserHandle    string          `json:"userHandle"`
	Holdings      decimal.Decimal `json:"holdings"`
}

type CaptureSnapshotRequest struct {
	PeriodKey   string            `json:"periodKey"`
	TotalSupply decimal.Decimal   `json:"totalSupply"`
	Holdings    []*HoldingRequest `json:"holdings"`
}

type CaptureSnapshotResponse struct {
	Snapshot *distribution.Snapshot `json:"snapshot"`
	Created  bool                   `json:"created"`
}

func (rpc *RpcServer) CaptureSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CaptureSnapshotRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	holdings := make([]*distribution.SnapshotHolding, 0, len(req.Holdings))
	for _, h := range req.Holdings {
		if h == nil {
			rpc.writeError(w, r, validation.New("holdings", "entries cannot be null"))
			return
		}
		holdings = append(holdings, &distribution.SnapshotHolding{
			WalletAddress: h.WalletAddress,
			UserHandle:    h.UserHandle,
			Holdings:      h.Holdings,
		})
	}
	snapshot, created, err := rpc.distributor.CaptureSnapshot(r.Context(), req.PeriodKey, req.TotalSupply, holdings)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, &CaptureSnapshotResponse{Snapshot: snapshot, Created: created})
}

type DistributeRequest struct {
	PeriodKey string           `json:"periodKey"`
	Chain     string           `json:"chain"`
	Revenue   *decimal.Decimal `json:"revenue"`
}

func (rpc *RpcServer) Distribute(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if err := decodeBody(r, &req); err != nil {
		rpc.writeError(w, r, err)
		return
	}
	if req.Revenue == nil {
		rpc.writeError(w, r, validation.New("revenue", "is required"))
		return
	}
	res, err := rpc.distributor.Distribute(r.Context(), req.PeriodKey, req.Chain, *req.Revenue)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (rpc *RpcServer) ListDistributions(w http.ResponseWriter, r *http.Request) {
	pools, err := rpc.distributor.ListPools(r.Context())
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

type DistributionDetail struct {
	Pool     *distribution.DistributionPool  `json:"pool"`
	Snapshot *distribution.Snapshot          `json:"snapshot"`
	Holdings []*distribution.SnapshotHolding `json:"holdings"`
}

func (rpc *RpcServer) GetDistribution(w http.ResponseWriter, r *http.Request) {
	periodKey := chi.URLParam(r, "periodKey")
	pool, err := rpc.distributor.GetPool(r.Context(), periodKey)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	snapshot, err := rpc.distributor.GetSnapshot(r.Context(), periodKey)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	holdings, err := rpc.distributor.ListHoldings(r.Context(), periodKey)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, &DistributionDetail{Pool: pool, Snapshot: snapshot, Holdings: holdings})
}
