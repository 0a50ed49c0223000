package pools

import (
	"fmt"
	"math/big"
	"strings"

	"poolscope/internal/model"
	"poolscope/internal/multicall"
)

// assetTypeNames maps the registry's numeric asset type to its display name.
var assetTypeNames = map[int64]string{
	0: "usd",
	1: "native",
	2: "btc",
	3: "other",
}

// coinMeta tags one coin call with its pool, coin slot address, and field.
type coinMeta struct {
	PoolID   string
	CoinAddr string
	Field    string
}

// mergeShapeField folds one decoded shape result into a growing pool record.
// A later value for the same field overwrites; unknown fields are a
// programming error, not a data gap.
func mergeShapeField(record *model.PoolRecord, field string, value any) error {
	switch field {
	case "coinsAddresses":
		addresses, err := multicall.AsAddressSlice(value)
		if err != nil {
			return err
		}
		record.CoinsAddresses = make([]string, len(addresses))
		for i, address := range addresses {
			record.CoinsAddresses[i] = strings.ToLower(address.Hex())
		}
	case "decimals":
		decimals, err := asDecimals(value)
		if err != nil {
			return err
		}
		record.Decimals = decimals
	case "underlyingDecimals":
		decimals, err := asDecimals(value)
		if err != nil {
			return err
		}
		record.UnderlyingDecimals = decimals
	case "assetType":
		code, err := multicall.AsBigInt(value)
		if err != nil {
			return err
		}
		record.AssetType = code.String()
		name, ok := assetTypeNames[code.Int64()]
		if !ok {
			name = "unknown"
		}
		record.AssetTypeName = name
	case "implementationAddress":
		address, err := multicall.AsAddress(value)
		if err != nil {
			return err
		}
		record.ImplementationAddress = strings.ToLower(address.Hex())
	case "lpTokenAddress":
		address, err := multicall.AsAddress(value)
		if err != nil {
			return err
		}
		record.LPTokenAddress = strings.ToLower(address.Hex())
	case "totalSupply":
		supply, err := multicall.AsBigInt(value)
		if err != nil {
			return err
		}
		record.TotalSupply = supply
	case "name":
		name, err := multicall.AsString(value)
		if err != nil {
			return err
		}
		record.Name = name
	case "symbol":
		symbol, err := multicall.AsString(value)
		if err != nil {
			return err
		}
		record.Symbol = symbol
	case "priceOracle":
		raw, err := multicall.AsBigInt(value)
		if err != nil {
			return err
		}
		oracle, _ := new(big.Float).Quo(
			new(big.Float).SetInt(raw),
			new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		).Float64()
		record.PriceOracle = &oracle
	default:
		return fmt.Errorf("unknown pool field %q", field)
	}
	return nil
}

// mergeCoinField folds one decoded coin result into the record's coin entry,
// creating the entry on first touch. Staked balances add up across staking
// destinations instead of overwriting.
func mergeCoinField(record *model.PoolRecord, coinAddr, field string, value any) error {
	coin := ensureCoin(record, coinAddr)
	switch field {
	case "symbol":
		symbol, err := multicall.AsString(value)
		if err != nil {
			return err
		}
		coin.Symbol = symbol
	case "decimals":
		decimals, err := multicall.AsUint8(value)
		if err != nil {
			return err
		}
		coin.Decimals = decimals
	case "balance":
		balance, err := multicall.AsBigInt(value)
		if err != nil {
			return err
		}
		coin.PoolBalance = balance
	case "stakedBalance":
		balance, err := multicall.AsBigInt(value)
		if err != nil {
			return err
		}
		if coin.PoolStakedBalance == nil {
			coin.PoolStakedBalance = new(big.Int)
		}
		coin.PoolStakedBalance.Add(coin.PoolStakedBalance, balance)
	default:
		return fmt.Errorf("unknown coin field %q", field)
	}
	return nil
}

func ensureCoin(record *model.PoolRecord, coinAddr string) *model.CoinRecord {
	lowered := strings.ToLower(coinAddr)
	for i := range record.Coins {
		if record.Coins[i].Address == lowered {
			return &record.Coins[i]
		}
	}
	record.Coins = append(record.Coins, model.CoinRecord{Address: lowered})
	return &record.Coins[len(record.Coins)-1]
}

func asDecimals(value any) ([]uint8, error) {
	raw, err := multicall.AsBigIntSlice(value)
	if err != nil {
		return nil, err
	}
	out := make([]uint8, len(raw))
	for i, entry := range raw {
		out[i] = uint8(entry.Uint64())
	}
	return out, nil
}
