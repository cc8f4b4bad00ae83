package rpcServer

import (
	"net/http"
)

func (rpc *RpcServer) TriggerRecalculation(w http.ResponseWriter, r *http.Request) {
	summary, err := rpc.adminService.TriggerRecalculation(r.Context())
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rpc *RpcServer) ListAccrualRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	runs, err := rpc.scheduler.ListRuns(r.Context(), limit)
	if err != nil {
		rpc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
