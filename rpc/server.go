// Package rpc is a gorilla/websocket JSON-RPC server: one connection loop
// reading a {method,params} envelope and dispatching by method name, exposing
// swapd's own surface -- querying a swap's current state and legal actions,
// and listing the ids of stored swaps. It has no method for proposing a new
// swap.
package rpc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	logging "github.com/ipfs/go-log"

	"github.com/rfc003/swapd/actions"
	"github.com/rfc003/swapd/driver"
	"github.com/rfc003/swapd/store"
	"github.com/rfc003/swapd/swap"
)

var log = logging.Logger("rpc")

const (
	methodSwapStatus  = "swap_status"
	methodSwapActions = "swap_actions"
	methodSwapList    = "swap_list"
)

// Request is the JSON-RPC envelope a client sends over the websocket
// connection.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the JSON-RPC envelope returned for every Request.
type Response struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Drivers looks up the running Driver for a swap id, so the server never
// needs to own swap lifecycle itself.
type Drivers interface {
	Get(id swap.ID) (*driver.Driver, bool)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the websocket JSON-RPC handler, one instance per daemon.
type Server struct {
	drivers Drivers
	store   store.Store
}

// New constructs a Server over the given driver registry and swap store.
func New(drivers Drivers, st store.Store) *Server {
	return &Server{drivers: drivers, store: st}
}

// ServeHTTP implements http.Handler, upgrading to a websocket and running
// one request/response loop per connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("rpc: failed to upgrade connection: %s", err)
		return
	}
	defer conn.Close() //nolint:errcheck

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Debugf("rpc: connection closed: %s", err)
			return
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			_ = writeError(conn, err)
			continue
		}

		if err := s.handle(conn, req); err != nil {
			_ = writeError(conn, err)
		}
	}
}

func (s *Server) handle(conn *websocket.Conn, req Request) error {
	switch req.Method {
	case methodSwapStatus:
		var params struct {
			SwapID string `json:"swap_id"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fmt.Errorf("rpc: unmarshal params: %w", err)
		}
		id, err := swap.ParseID(params.SwapID)
		if err != nil {
			return err
		}
		d, ok := s.drivers.Get(id)
		if !ok {
			return fmt.Errorf("rpc: no such swap %s", id)
		}
		return writeResult(conn, d.State())

	case methodSwapActions:
		var params struct {
			SwapID string `json:"swap_id"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return fmt.Errorf("rpc: unmarshal params: %w", err)
		}
		id, err := swap.ParseID(params.SwapID)
		if err != nil {
			return err
		}
		d, ok := s.drivers.Get(id)
		if !ok {
			return fmt.Errorf("rpc: no such swap %s", id)
		}
		acts := d.Actions()
		if acts == nil {
			acts = []actions.Action{}
		}
		return writeResult(conn, acts)

	case methodSwapList:
		records, err := s.store.All()
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.Request.SwapID.String())
		}
		return writeResult(conn, ids)

	default:
		return fmt.Errorf("rpc: unknown method %q", req.Method)
	}
}

func writeResult(conn *websocket.Conn, result interface{}) error {
	return conn.WriteJSON(Response{Result: result})
}

func writeError(conn *websocket.Conn, err error) error {
	return conn.WriteJSON(Response{Error: err.Error()})
}
