package registry

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const mainRegistryABIJSON = `[
  {"inputs": [], "name": "pool_count", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "pool_list", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_coins", "outputs": [{"type": "address[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_decimals", "outputs": [{"type": "uint256[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_underlying_decimals", "outputs": [{"type": "uint256[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_pool_asset_type", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_lp_token", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const factoryRegistryABIJSON = `[
  {"inputs": [], "name": "pool_count", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "pool_list", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_coins", "outputs": [{"type": "address[4]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_decimals", "outputs": [{"type": "uint256[4]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_underlying_decimals", "outputs": [{"type": "uint256[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_pool_asset_type", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_implementation_address", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const cryptoRegistryABIJSON = `[
  {"inputs": [], "name": "pool_count", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "pool_list", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_coins", "outputs": [{"type": "address[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_decimals", "outputs": [{"type": "uint256[8]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_lp_token", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const factoryCryptoRegistryABIJSON = `[
  {"inputs": [], "name": "pool_count", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "pool_list", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_coins", "outputs": [{"type": "address[4]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_decimals", "outputs": [{"type": "uint256[4]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_pool", "type": "address"}], "name": "get_token", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

const plainPoolABIJSON = `[
  {"inputs": [{"name": "i", "type": "int128"}, {"name": "j", "type": "int128"}, {"name": "dx", "type": "uint256"}], "name": "get_dy", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "get_virtual_price", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "balances", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "buyer", "type": "address"},
    {"indexed": false, "name": "sold_id", "type": "int128"},
    {"indexed": false, "name": "tokens_sold", "type": "uint256"},
    {"indexed": false, "name": "bought_id", "type": "int128"},
    {"indexed": false, "name": "tokens_bought", "type": "uint256"}
  ], "name": "TokenExchange", "type": "event"},
  {"anonymous": false, "inputs": [
    {"indexed": true, "name": "buyer", "type": "address"},
    {"indexed": false, "name": "sold_id", "type": "int128"},
    {"indexed": false, "name": "tokens_sold", "type": "uint256"},
    {"indexed": false, "name": "bought_id", "type": "int128"},
    {"indexed": false, "name": "tokens_bought", "type": "uint256"}
  ], "name": "TokenExchangeUnderlying", "type": "event"}
]`

const cryptoPoolABIJSON = `[
  {"inputs": [{"name": "i", "type": "uint256"}, {"name": "j", "type": "uint256"}, {"name": "dx", "type": "uint256"}], "name": "get_dy", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "get_virtual_price", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "xcp_profit", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "xcp_profit_a", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "balances", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const priceOracleNoArgsABIJSON = `[
  {"inputs": [], "name": "price_oracle", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const priceOracleWithArgsABIJSON = `[
  {"inputs": [{"name": "k", "type": "uint256"}], "name": "price_oracle", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const gaugeABIJSON = `[
  {"inputs": [], "name": "reward_count", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "uint256"}], "name": "reward_tokens", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "arg0", "type": "address"}], "name": "reward_data", "outputs": [
    {"name": "token", "type": "address"},
    {"name": "distributor", "type": "address"},
    {"name": "period_finish", "type": "uint256"},
    {"name": "rate", "type": "uint256"},
    {"name": "last_update", "type": "uint256"},
    {"name": "integral", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const wrappedTokenABIJSON = `[
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getCash", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "underlying", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

type abiHolder struct {
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (h *abiHolder) get(raw string) (*abi.ABI, error) {
	h.once.Do(func() {
		h.parsed, h.err = abi.JSON(strings.NewReader(raw))
	})
	if h.err != nil {
		return nil, h.err
	}
	return &h.parsed, nil
}

var (
	mainRegistryHolder          abiHolder
	factoryRegistryHolder       abiHolder
	cryptoRegistryHolder        abiHolder
	factoryCryptoRegistryHolder abiHolder
	plainPoolHolder             abiHolder
	cryptoPoolHolder            abiHolder
	oracleNoArgsHolder          abiHolder
	oracleWithArgsHolder        abiHolder
	erc20Holder                 abiHolder
	erc20Bytes32Holder          abiHolder
	gaugeHolder                 abiHolder
	wrappedTokenHolder          abiHolder
)

func mainRegistryABI() (*abi.ABI, error)    { return mainRegistryHolder.get(mainRegistryABIJSON) }
func factoryRegistryABI() (*abi.ABI, error) { return factoryRegistryHolder.get(factoryRegistryABIJSON) }
func cryptoRegistryABI() (*abi.ABI, error)  { return cryptoRegistryHolder.get(cryptoRegistryABIJSON) }
func factoryCryptoRegistryABI() (*abi.ABI, error) {
	return factoryCryptoRegistryHolder.get(factoryCryptoRegistryABIJSON)
}

// PlainPoolABI returns the stableswap pool ABI, exchange events included.
func PlainPoolABI() (*abi.ABI, error) { return plainPoolHolder.get(plainPoolABIJSON) }

// CryptoPoolABI returns the crypto pool ABI (profit accumulators, uint256 get_dy).
func CryptoPoolABI() (*abi.ABI, error) { return cryptoPoolHolder.get(cryptoPoolABIJSON) }

// PriceOracleABI returns the price_oracle ABI; pools holding more than two
// coins expose one oracle per extra coin and take an index argument.
func PriceOracleABI(withArgs bool) (*abi.ABI, error) {
	if withArgs {
		return oracleWithArgsHolder.get(priceOracleWithArgsABIJSON)
	}
	return oracleNoArgsHolder.get(priceOracleNoArgsABIJSON)
}

// ERC20ABI returns the standard token ABI with string symbol/name.
func ERC20ABI() (*abi.ABI, error) { return erc20Holder.get(erc20ABIJSON) }

// ERC20Bytes32ABI returns the token ABI variant with bytes32 symbol/name.
func ERC20Bytes32ABI() (*abi.ABI, error) { return erc20Bytes32Holder.get(erc20Bytes32ABIJSON) }

// GaugeABI returns the staking gauge ABI.
func GaugeABI() (*abi.ABI, error) { return gaugeHolder.get(gaugeABIJSON) }

// WrappedTokenABI returns the interest-bearing wrapper token ABI.
func WrappedTokenABI() (*abi.ABI, error) { return wrappedTokenHolder.get(wrappedTokenABIJSON) }
