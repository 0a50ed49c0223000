package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolscope/internal/model"
)

// Store provides Postgres persistence for aggregation results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPoolSnapshots inserts or updates aggregated pool records.
func (s *Store) UpsertPoolSnapshots(ctx context.Context, chain string, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		coins, err := json.Marshal(pool.Coins)
		if err != nil {
			return fmt.Errorf("marshal coins for %s: %w", pool.ID, err)
		}
		totalSupply := ""
		if pool.TotalSupply != nil {
			totalSupply = pool.TotalSupply.String()
		}
		batch.Queue(`
			INSERT INTO pool_snapshots (
				chain, pool_id, pool_address, name, symbol, asset_type_name,
				implementation, lp_token_address, total_supply, coins, usd_total,
				gauge_address, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (chain, pool_id)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				asset_type_name = EXCLUDED.asset_type_name,
				implementation = EXCLUDED.implementation,
				lp_token_address = EXCLUDED.lp_token_address,
				total_supply = EXCLUDED.total_supply,
				coins = EXCLUDED.coins,
				usd_total = EXCLUDED.usd_total,
				gauge_address = EXCLUDED.gauge_address,
				updated_at = now()
		`,
			chain,
			pool.ID,
			pool.Address,
			pool.Name,
			pool.Symbol,
			pool.AssetTypeName,
			pool.Implementation,
			pool.LPTokenAddress,
			totalSupply,
			coins,
			pool.USDTotal,
			pool.GaugeAddress,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPoolRates inserts or updates pool rate estimates.
func (s *Store) UpsertPoolRates(ctx context.Context, chain string, rates []model.PoolRate) error {
	if len(rates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(`
			INSERT INTO pool_rates (
				chain, pool_id, pool_address, pool_symbol, virtual_price,
				apy, apy_weekly, volume, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
			ON CONFLICT (chain, pool_id)
			DO UPDATE SET
				pool_address = EXCLUDED.pool_address,
				pool_symbol = EXCLUDED.pool_symbol,
				virtual_price = EXCLUDED.virtual_price,
				apy = EXCLUDED.apy,
				apy_weekly = EXCLUDED.apy_weekly,
				volume = EXCLUDED.volume,
				updated_at = now()
		`,
			chain,
			rate.PoolID,
			rate.PoolAddress,
			rate.PoolSymbol,
			rate.VirtualPrice,
			rate.APY,
			rate.APYWeekly,
			rate.Volume,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rates {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
