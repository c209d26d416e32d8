package events

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"recycless/crypto"
)

func TestRecycleBottlesEvent(t *testing.T) {
	station := common.HexToAddress("0x0000000000000000000000000000000000000051")
	user := common.HexToAddress("0x0000000000000000000000000000000000000001")
	evt := RecycleBottles{Caller: station, Receiver: user, Increment: 4, UserTotal: 9, Total: 18446744073709551615}.Event()
	if evt.Type != TypeRecycleBottles {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if got, _ := evt.Attr("receiver"); got != crypto.Format(user) {
		t.Fatalf("receiver attribute %q", got)
	}
	if got, _ := evt.Attr("total"); got != "18446744073709551615" {
		t.Fatalf("total must render as a full decimal, got %q", got)
	}
	if _, ok := evt.Attr("missing"); ok {
		t.Fatalf("unexpected attribute")
	}
}

func TestCollectorKeepsOrder(t *testing.T) {
	var c Collector
	c.Emit(RecycleCreated{})
	c.Emit(nil)
	c.Emit(RecycleAssetOptIn{AssetID: 2})
	got := c.Events()
	if len(got) != 2 || got[0].EventType() != TypeRecycleCreated || got[1].EventType() != TypeRecycleAssetOptIn {
		t.Fatalf("unexpected events: %+v", got)
	}
}
