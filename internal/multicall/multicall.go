package multicall

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const defaultChunkSize = 200

// Call describes one read-only contract call. Meta is an opaque tag the
// aggregator round-trips untouched; it is the caller's correlation key.
type Call struct {
	Target common.Address
	ABI    *abi.ABI
	Method string
	Params []any
	Block  *big.Int // optional height override, nil means latest
	Meta   any
}

// Result pairs one call's decoded return values with its original Meta tag.
type Result struct {
	Data []any
	Meta any
}

// First returns the first decoded return value, or nil.
func (r Result) First() any {
	if len(r.Data) == 0 {
		return nil
	}
	return r.Data[0]
}

// BatchCaller executes a JSON-RPC batch round-trip.
type BatchCaller interface {
	BatchCall(ctx context.Context, elems []rpc.BatchElem) error
}

// Aggregator groups independent eth_call reads into as few batch round-trips
// as possible. Results come back flattened in input order, so positional and
// Meta-based correlation both hold across chunk boundaries.
type Aggregator struct {
	caller    BatchCaller
	chunkSize int
	logger    *zap.Logger
}

func NewAggregator(caller BatchCaller, chunkSize int, logger *zap.Logger) *Aggregator {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{caller: caller, chunkSize: chunkSize, logger: logger}
}

// Execute runs all calls and returns one result per call, in call order.
// Any transport or decode failure fails the whole aggregation; callers that
// need per-call fault isolation issue those calls individually.
func (a *Aggregator) Execute(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if a.caller == nil {
		return nil, fmt.Errorf("batch caller is nil")
	}

	elems := make([]rpc.BatchElem, len(calls))
	outputs := make([]hexutil.Bytes, len(calls))
	for i, call := range calls {
		if call.ABI == nil {
			return nil, fmt.Errorf("call %d: abi is nil", i)
		}
		input, err := call.ABI.Pack(call.Method, call.Params...)
		if err != nil {
			return nil, fmt.Errorf("pack %s: %w", call.Method, err)
		}
		elems[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []any{
				map[string]any{
					"to":   call.Target,
					"data": hexutil.Bytes(input),
				},
				toBlockNumArg(call.Block),
			},
			Result: &outputs[i],
		}
	}

	for start := 0; start < len(elems); start += a.chunkSize {
		end := start + a.chunkSize
		if end > len(elems) {
			end = len(elems)
		}
		if err := a.caller.BatchCall(ctx, elems[start:end]); err != nil {
			return nil, fmt.Errorf("batch call [%d:%d]: %w", start, end, err)
		}
		for i := start; i < end; i++ {
			if elems[i].Error != nil {
				return nil, fmt.Errorf("call %s on %s: %w", calls[i].Method, calls[i].Target.Hex(), elems[i].Error)
			}
		}
	}

	a.logger.Debug("batch aggregation complete",
		zap.Int("calls", len(calls)),
		zap.Int("chunk_size", a.chunkSize),
	)

	results := make([]Result, len(calls))
	for i, call := range calls {
		values, err := call.ABI.Unpack(call.Method, outputs[i])
		if err != nil {
			return nil, fmt.Errorf("unpack %s on %s: %w", call.Method, call.Target.Hex(), err)
		}
		results[i] = Result{Data: values, Meta: call.Meta}
	}
	return results, nil
}

func toBlockNumArg(number *big.Int) string {
	if number == nil {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}
