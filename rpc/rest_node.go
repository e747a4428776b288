package rpc

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/polysight-org/polysight/logger"
	"github.com/polysight-org/polysight/partition"
	"github.com/polysight-org/polysight/types"
)

const (
	pathTransactions         = "/transactions"
	pathGetTransactionRecord = "/transactions/{signature}"
	pathLatestRoundNumber    = "/rounds/latest"
)

// NodeEndpoints registers CBOR based REST endpoints of the node.
func NodeEndpoints(node partitionNode, log *slog.Logger) RegistrarFunc {
	return func(r *mux.Router) {
		// submit transaction
		r.HandleFunc(pathTransactions, submitTransaction(node, log)).Methods(http.MethodPost, http.MethodOptions)

		// get transaction record
		r.HandleFunc(pathGetTransactionRecord, getTransactionRecord(node, log)).Methods(http.MethodGet, http.MethodOptions)

		// get latest round number
		r.HandleFunc(pathLatestRoundNumber, getLatestRoundNumber(node, log)).Methods(http.MethodGet, http.MethodOptions)
	}
}

func submitTransaction(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		if _, err := buf.ReadFrom(r.Body); err != nil {
			WriteCBORError(w, fmt.Errorf("reading request body failed: %w", err), http.StatusBadRequest, log)
			return
		}

		tx := &types.TransactionOrder{}
		if err := types.Cbor.Unmarshal(buf.Bytes(), tx); err != nil {
			WriteCBORError(w, fmt.Errorf("unable to decode request body as transaction: %w", err), http.StatusBadRequest, log)
			return
		}
		sig, err := node.SubmitTx(r.Context(), tx, r.URL.Query().Get("skipPreflight") == "true")
		if err != nil {
			WriteCBORError(w, err, http.StatusBadRequest, log)
			return
		}
		WriteCBORResponse(w, sig[:], http.StatusAccepted, log)
	}
}

func getTransactionRecord(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sig, err := types.SignatureFromString(mux.Vars(r)["signature"])
		if err != nil {
			WriteCBORError(w, fmt.Errorf("invalid transaction signature: %w", err), http.StatusBadRequest, log)
			return
		}
		txRecord, _, err := node.GetTransactionRecord(r.Context(), sig)
		if err != nil {
			if errors.Is(err, partition.ErrIndexNotFound) {
				WriteCBORError(w, errors.New("not found"), http.StatusNotFound, log)
				return
			}
			WriteCBORError(w, err, http.StatusInternalServerError, log)
			return
		}
		WriteCBORResponse(w, txRecord, http.StatusOK, log)
	}
}

func getLatestRoundNumber(node partitionNode, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteCBORResponse(w, node.LatestBlockNumber(), http.StatusOK, log)
	}
}

// WriteCBORResponse replies to the request with the given response and HTTP code.
func WriteCBORResponse(w http.ResponseWriter, response any, statusCode int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationCBOR)
	w.WriteHeader(statusCode)
	if err := types.Cbor.Encode(w, response); err != nil {
		log.Warn("failed to write CBOR response", logger.Error(err))
	}
}

// WriteCBORError replies to the request with the specified error message and HTTP code.
// It does not otherwise end the request; the caller should ensure no further
// writes are done to w.
func WriteCBORError(w http.ResponseWriter, e error, code int, log *slog.Logger) {
	w.Header().Set(headerContentType, applicationCBOR)
	w.WriteHeader(code)
	if err := types.Cbor.Encode(w, struct {
		_   struct{} `cbor:",toarray"`
		Err string
	}{
		Err: fmt.Sprintf("%v", e),
	}); err != nil {
		log.Warn("failed to write CBOR error response", logger.Error(err))
	}
}
