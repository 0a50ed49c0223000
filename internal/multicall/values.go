package multicall

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
)

// AsAddress converts a decoded return value to an address.
func AsAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

// AsBigInt converts a decoded return value to a big integer.
func AsBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

// AsUint8 converts a decoded return value to a uint8.
func AsUint8(value any) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	case uint64:
		return uint8(v), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

// AsString converts a decoded return value to a string, accepting the bytes32
// form some legacy tokens use for symbol and name.
func AsString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), nil
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), nil
	default:
		return "", fmt.Errorf("unsupported string type %T", value)
	}
}

// AsAddressSlice converts a decoded fixed-size address array to a slice,
// keeping empty sentinel slots in place.
func AsAddressSlice(value any) ([]common.Address, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported address array type %T", value)
	}
	out := make([]common.Address, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		address, ok := rv.Index(i).Interface().(common.Address)
		if !ok {
			return nil, fmt.Errorf("unsupported address element type %T", rv.Index(i).Interface())
		}
		out[i] = address
	}
	return out, nil
}

// AsBigIntSlice converts a decoded fixed-size uint256 array to a slice.
func AsBigIntSlice(value any) ([]*big.Int, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Array && rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unsupported int array type %T", value)
	}
	out := make([]*big.Int, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parsed, err := AsBigInt(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = parsed
	}
	return out, nil
}
