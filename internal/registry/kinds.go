package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Kind enumerates the mutually exclusive registry/pool shapes. Each kind maps
// to a fixed call set and result schema, resolved once per pool.
type Kind int

const (
	KindMain Kind = iota
	KindFactory
	KindCrypto
	KindFactoryCrypto
)

// ParseKind parses a registry kind selector. Unknown selectors are a
// configuration error and reject the whole request.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "main":
		return KindMain, nil
	case "factory":
		return KindFactory, nil
	case "crypto":
		return KindCrypto, nil
	case "factory-crypto":
		return KindFactoryCrypto, nil
	default:
		return 0, fmt.Errorf("registry kind must be 'main'|'factory'|'crypto'|'factory-crypto', got %q", s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindMain:
		return "main"
	case KindFactory:
		return "factory"
	case KindCrypto:
		return "crypto"
	case KindFactoryCrypto:
		return "factory-crypto"
	default:
		return "unknown"
	}
}

// PoolID returns the chain-scoped stable pool identity for a registry index.
func (k Kind) PoolID(index int) string {
	switch k {
	case KindFactory:
		return fmt.Sprintf("factory-v2-%d", index)
	case KindCrypto:
		return fmt.Sprintf("crypto-%d", index)
	case KindFactoryCrypto:
		return fmt.Sprintf("factory-crypto-%d", index)
	default:
		return fmt.Sprintf("%d", index)
	}
}

// IsCrypto reports whether pools of this kind use the profit-accumulator
// yield model instead of virtual price.
func (k Kind) IsCrypto() bool {
	return k == KindCrypto || k == KindFactoryCrypto
}

// CoinSlots is the fixed size of the registry's coin slot arrays.
func (k Kind) CoinSlots() int {
	switch k {
	case KindMain, KindCrypto:
		return 8
	default:
		return 4
	}
}

// hasAssetInfo reports whether the registry exposes underlying decimals and
// the pool asset type.
func (k Kind) hasAssetInfo() bool {
	return k == KindMain || k == KindFactory
}

// lpTokenMethod returns the registry method resolving a pool's liquidity
// token address, or "" when the pool is its own liquidity token.
func (k Kind) lpTokenMethod() string {
	switch k {
	case KindMain, KindCrypto:
		return "get_lp_token"
	case KindFactoryCrypto:
		return "get_token"
	default:
		return ""
	}
}

// RegistryABI returns the directory contract ABI for the kind.
func (k Kind) RegistryABI() (*abi.ABI, error) {
	switch k {
	case KindMain:
		return mainRegistryABI()
	case KindFactory:
		return factoryRegistryABI()
	case KindCrypto:
		return cryptoRegistryABI()
	case KindFactoryCrypto:
		return factoryCryptoRegistryABI()
	default:
		return nil, fmt.Errorf("no registry abi for kind %d", k)
	}
}

// PoolABI returns the pool contract ABI for the kind.
func (k Kind) PoolABI() (*abi.ABI, error) {
	if k.IsCrypto() {
		return CryptoPoolABI()
	}
	return PlainPoolABI()
}
