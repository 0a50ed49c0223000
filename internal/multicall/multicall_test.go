package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const testABIJSON = `[
  {"inputs": [{"name": "i", "type": "uint256"}], "name": "value_at", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

func testABI(t *testing.T) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(testABIJSON))
	if err != nil {
		t.Fatalf("parse test abi: %v", err)
	}
	return &parsed
}

// echoCaller answers value_at(i) with i+1000 and records batch sizes.
type echoCaller struct {
	abi        *abi.ABI
	batchSizes []int
	failBatch  int // 1-based batch index to fail, 0 means never
	elemErrAt  int // 1-based element position to fail, 0 means never
	seen       int
}

func (c *echoCaller) BatchCall(_ context.Context, elems []rpc.BatchElem) error {
	c.batchSizes = append(c.batchSizes, len(elems))
	if c.failBatch > 0 && len(c.batchSizes) == c.failBatch {
		return fmt.Errorf("transport down")
	}
	for i := range elems {
		c.seen++
		if c.elemErrAt > 0 && c.seen == c.elemErrAt {
			elems[i].Error = fmt.Errorf("execution reverted")
			continue
		}
		args := elems[i].Args[0].(map[string]any)
		input := args["data"].(hexutil.Bytes)
		values, err := c.abi.Methods["value_at"].Inputs.Unpack(input[4:])
		if err != nil {
			return err
		}
		arg := values[0].(*big.Int)
		out, err := c.abi.Methods["value_at"].Outputs.Pack(new(big.Int).Add(arg, big.NewInt(1000)))
		if err != nil {
			return err
		}
		*(elems[i].Result.(*hexutil.Bytes)) = out
	}
	return nil
}

func TestExecutePreservesOrderAndMeta(t *testing.T) {
	parsed := testABI(t)
	caller := &echoCaller{abi: parsed}
	agg := NewAggregator(caller, 3, nil)

	calls := make([]Call, 8)
	for i := range calls {
		calls[i] = Call{
			Target: common.HexToAddress("0x0000000000000000000000000000000000000001"),
			ABI:    parsed,
			Method: "value_at",
			Params: []any{big.NewInt(int64(i))},
			Meta:   fmt.Sprintf("tag-%d", i),
		}
	}

	results, err := agg.Execute(context.Background(), calls)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(results) != len(calls) {
		t.Fatalf("got %d results, want %d", len(results), len(calls))
	}
	for i, result := range results {
		if result.Meta != fmt.Sprintf("tag-%d", i) {
			t.Fatalf("result %d meta = %v", i, result.Meta)
		}
		got := result.First().(*big.Int).Int64()
		if got != int64(i)+1000 {
			t.Fatalf("result %d = %d, want %d", i, got, i+1000)
		}
	}

	// 8 calls with chunk size 3 means 3 sub-batches.
	wantSizes := []int{3, 3, 2}
	if len(caller.batchSizes) != len(wantSizes) {
		t.Fatalf("batch sizes %v", caller.batchSizes)
	}
	for i, size := range wantSizes {
		if caller.batchSizes[i] != size {
			t.Fatalf("batch %d size = %d, want %d", i, caller.batchSizes[i], size)
		}
	}
}

func TestExecuteFailsWholeOnTransportError(t *testing.T) {
	parsed := testABI(t)
	caller := &echoCaller{abi: parsed, failBatch: 2}
	agg := NewAggregator(caller, 2, nil)

	calls := make([]Call, 5)
	for i := range calls {
		calls[i] = Call{
			Target: common.HexToAddress("0x0000000000000000000000000000000000000001"),
			ABI:    parsed,
			Method: "value_at",
			Params: []any{big.NewInt(int64(i))},
		}
	}

	if _, err := agg.Execute(context.Background(), calls); err == nil {
		t.Fatal("expected transport error to fail the aggregation")
	}
}

func TestExecuteFailsWholeOnElementError(t *testing.T) {
	parsed := testABI(t)
	caller := &echoCaller{abi: parsed, elemErrAt: 4}
	agg := NewAggregator(caller, 10, nil)

	calls := make([]Call, 6)
	for i := range calls {
		calls[i] = Call{
			Target: common.HexToAddress("0x0000000000000000000000000000000000000001"),
			ABI:    parsed,
			Method: "value_at",
			Params: []any{big.NewInt(int64(i))},
		}
	}

	if _, err := agg.Execute(context.Background(), calls); err == nil {
		t.Fatal("expected element error to fail the aggregation")
	}
}

func TestExecuteEmpty(t *testing.T) {
	agg := NewAggregator(&echoCaller{}, 0, nil)
	results, err := agg.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}
