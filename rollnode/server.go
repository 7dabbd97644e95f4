// Copyright 2024-2025, The keel Authors
// For license information, see https://github.com/keelnode/keel/blob/master/LICENSE

package rollnode

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"

	"github.com/keelnode/keel/state"
)

// SubmitTxPath is the transaction submission route.
const SubmitTxPath = "/submit_tx"

// TxServer is the node's HTTP ingress: it accepts JSON-encoded
// transactions and forwards them to the node's admission queue.
type TxServer struct {
	server               *http.Server
	node                 *Node
	httpServerExitedChan chan interface{}
	httpServerError      error
}

func NewTxServer(addr string, node *Node) *TxServer {
	ts := &TxServer{
		node:                 node,
		httpServerExitedChan: make(chan interface{}),
	}
	ts.server = &http.Server{
		Addr:    addr,
		Handler: ts,
	}

	go func() {
		log.Info("tx ingress listening", "addr", addr)
		err := ts.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			ts.httpServerError = err
		}
		close(ts.httpServerExitedChan)
	}()

	return ts
}

func (ts *TxServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != SubmitTxPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var tx state.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		log.Warn("undecodable transaction submission", "err", err)
		http.Error(w, "malformed transaction: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := ts.node.QueueTransaction(&tx); err != nil {
		log.Warn("rejected transaction", "key", tx.Key(), "err", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ExitedChan closes when the server terminates.
func (ts *TxServer) ExitedChan() <-chan interface{} {
	return ts.httpServerExitedChan
}

func (ts *TxServer) ServerError() error {
	return ts.httpServerError
}

func (ts *TxServer) Shutdown() error {
	err := ts.server.Close()
	if err != nil {
		return err
	}
	<-ts.httpServerExitedChan
	return ts.httpServerError
}
