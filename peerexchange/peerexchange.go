// Package peerexchange defines the minimal interface a transport must
// satisfy to carry RFC003's out-of-band negotiation messages (Request,
// Accept, Decline) between two parties. The wire protocol and discovery
// mechanism are left to whatever transport a caller wires in: a narrow
// send surface plus a channel-delivered inbox, rather than a
// request/response RPC.
package peerexchange

import (
	"context"

	"github.com/rfc003/swapd/swap"
)

// Oracle is what a driver needs from the peer exchange to move a swap from
// Proposed to Accepted or Declined: the ability to send a Request and block
// for the counterparty's Accept/Decline, or to receive one and answer it.
type Oracle interface {
	// SendRequest delivers req to the counterparty and blocks until their
	// Accept or Decline response arrives, or ctx is cancelled.
	SendRequest(ctx context.Context, req swap.Request) (Response, error)

	// Requests returns the channel on which incoming proposals from
	// counterparties are delivered, for a responder to answer.
	Requests() <-chan Proposal
}

// Response is the counterparty's answer to a sent Request.
type Response struct {
	Declined bool
	Accept   swap.Accept // zero value when Declined
}

// Proposal is an incoming Request paired with the function used to answer
// it, so a responder need not track a correlation id itself.
type Proposal struct {
	Request swap.Request
	Reply   func(ctx context.Context, resp Response) error
}
