package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/txsystem"
	"github.com/polysight-org/polysight/types"
)

type infoResponse struct {
	NetworkID   types.NetworkID                `json:"networkId"`
	Name        string                         `json:"name"`
	NodeID      types.Address                  `json:"nodeId"`
	RoundNumber uint64                         `json:"roundNumber,string"`
	TxFee       uint64                         `json:"txFee,string"`
	Programs    []*txsystem.ProgramDescription `json:"programs"`
}

func InfoEndpoints(node partitionNode, name string, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		r.HandleFunc("/info", infoHandler(node, name, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

func infoHandler(node partitionNode, name string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		i := infoResponse{
			NetworkID:   node.NetworkID(),
			Name:        name,
			NodeID:      node.NodeID(),
			RoundNumber: node.LatestBlockNumber(),
			TxFee:       node.TxFee(),
			Programs:    node.Programs(),
		}
		w.Header().Set(headerContentType, applicationJson)
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(i); err != nil {
			log.WarnContext(r.Context(), "failed to write info message", logger.Error(err))
		}
	}
}

// MetricsEndpoints registers prometheus metrics handler, when "handler" is nil no endpoint is registered.
func MetricsEndpoints(handler http.Handler) RegistrarFunc {
	return func(r *mux.Router) {
		if handler != nil {
			r.Handle("/metrics", handler).Methods(http.MethodGet, http.MethodOptions)
		}
	}
}
