package peerexchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rfc003/swapd/internal/testutil"
	"github.com/rfc003/swapd/ledger"
	"github.com/rfc003/swapd/peerexchange"
	"github.com/rfc003/swapd/swap"
)

type fakeIdentity struct{ kind ledger.Kind }

func (f fakeIdentity) String() string    { return "fake" }
func (f fakeIdentity) Kind() ledger.Kind { return f.kind }

func TestFakePeerExchange_SendRequest_ReturnsCannedAccept(t *testing.T) {
	want := peerexchange.Response{
		Accept: swap.Accept{
			AlphaRedeemIdentity: fakeIdentity{ledger.Bitcoin},
			BetaRedeemIdentity:  fakeIdentity{ledger.Ethereum},
		},
	}
	oracle := testutil.NewFakePeerExchange(want)

	got, err := oracle.SendRequest(context.Background(), swap.Request{SwapID: swap.NewID()})
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFakePeerExchange_Inject_DeliversOnRequests(t *testing.T) {
	oracle := testutil.NewFakePeerExchange(peerexchange.Response{})

	req := swap.Request{SwapID: swap.NewID()}
	replied := make(chan peerexchange.Response, 1)
	oracle.Inject(req, func(_ context.Context, resp peerexchange.Response) error {
		replied <- resp
		return nil
	})

	prop := <-oracle.Requests()
	require.Equal(t, req.SwapID, prop.Request.SwapID)

	accept := peerexchange.Response{Accept: swap.Accept{AlphaRedeemIdentity: fakeIdentity{ledger.Bitcoin}}}
	require.NoError(t, prop.Reply(context.Background(), accept))
	require.Equal(t, accept, <-replied)
}
