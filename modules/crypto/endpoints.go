package crypto

import "github.com/kstrand/dashkit/common"

// Endpoints lists the upstream URLs the crypto source aggregates. Passed in
// by value at construction so nothing in this package depends on package
// state or load order; tests point the fields at an httptest server.
type Endpoints struct {
	Price      string // CoinGecko simple price, JSON
	Fees       string // mempool.space recommended fees, JSON
	Difficulty string // blockchain.info difficulty, bare number
	Hashrate   string // blockchain.info hashrate in GH/s, bare number
	Blocks     string // mempool.space recent blocks, JSON array
	Mempool    string // mempool.space mempool summary, JSON
}

// DefaultEndpoints returns the public production APIs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Price:      "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd",
		Fees:       "https://mempool.space/api/v1/fees/recommended",
		Difficulty: "https://blockchain.info/q/getdifficulty",
		Hashrate:   "https://blockchain.info/q/hashrate",
		Blocks:     "https://mempool.space/api/v1/blocks",
		Mempool:    "https://mempool.space/api/mempool",
	}
}

// EndpointsFromConfig returns DefaultEndpoints with any configured
// overrides applied (keys under "crypto.endpoints.").
func EndpointsFromConfig(cfg *common.Config) Endpoints {
	e := DefaultEndpoints()
	e.Price = cfg.GetString("crypto.endpoints.price", e.Price)
	e.Fees = cfg.GetString("crypto.endpoints.fees", e.Fees)
	e.Difficulty = cfg.GetString("crypto.endpoints.difficulty", e.Difficulty)
	e.Hashrate = cfg.GetString("crypto.endpoints.hashrate", e.Hashrate)
	e.Blocks = cfg.GetString("crypto.endpoints.blocks", e.Blocks)
	e.Mempool = cfg.GetString("crypto.endpoints.mempool", e.Mempool)
	return e
}
