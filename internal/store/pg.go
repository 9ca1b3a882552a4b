package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. It accesses the underlying *sql.DB and sets the pool
// configuration. Zero values fall back to reasonable defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 10
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 10
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// GetCheckpoint retrieves a processor's checkpoint
func (s *pgStore) GetCheckpoint(ctx context.Context, processorName string) (*schema.ProcessorCheckpoint, error) {
	var cp schema.ProcessorCheckpoint
	err := s.db.WithContext(ctx).
		Where("processor_name = ?", processorName).
		First(&cp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint for %s: %w", processorName, err)
	}
	return &cp, nil
}

// GetRollingWindows retrieves the rolling windows of the given markets. A row
// violating the parallel-array invariant aborts the read; repairing it by
// guessing would silently corrupt daily volumes.
func (s *pgStore) GetRollingWindows(ctx context.Context, marketIDs []int64) (map[int64]schema.MarketRollingWindow, error) {
	if len(marketIDs) == 0 {
		return map[int64]schema.MarketRollingWindow{}, nil
	}

	var rows []schema.MarketRollingWindow
	if err := s.db.WithContext(ctx).
		Where("market_id IN ?", marketIDs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get rolling windows: %w", err)
	}

	windows := make(map[int64]schema.MarketRollingWindow, len(rows))
	for i := range rows {
		if err := rows[i].Validate(); err != nil {
			return nil, err
		}
		windows[rows[i].MarketID] = rows[i]
	}
	return windows, nil
}

// GetPositions retrieves the stored liquidity positions for the given keys
func (s *pgStore) GetPositions(ctx context.Context, keys []PositionKey) (map[PositionKey]schema.UserLiquidityPosition, error) {
	if len(keys) == 0 {
		return map[PositionKey]schema.UserLiquidityPosition{}, nil
	}

	pairs := make([][]any, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, []any{key.Provider, key.MarketID})
	}

	var rows []schema.UserLiquidityPosition
	if err := s.db.WithContext(ctx).
		Where("(provider, market_id) IN ?", pairs).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get liquidity positions: %w", err)
	}

	positions := make(map[PositionKey]schema.UserLiquidityPosition, len(rows))
	for _, row := range rows {
		positions[PositionKey{Provider: row.Provider, MarketID: row.MarketID}] = row
	}
	return positions, nil
}

// GetLastClosePrice retrieves the close price of the newest finalized bucket
// for a market and resolution
func (s *pgStore) GetLastClosePrice(ctx context.Context, marketID int64, resolution domain.Resolution) (decimal.Decimal, error) {
	var bucket schema.PeriodicBucket
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND resolution = ?", marketID, resolution).
		Order("start_time DESC").
		First(&bucket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get last close price: %w", err)
	}
	return bucket.ClosePrice, nil
}

// GetOpenBuckets retrieves every persisted open-bucket accumulator
func (s *pgStore) GetOpenBuckets(ctx context.Context) ([]schema.OpenBucketState, error) {
	var rows []schema.OpenBucketState
	if err := s.db.WithContext(ctx).
		Order("market_id ASC, resolution ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get open bucket states: %w", err)
	}
	return rows, nil
}

// CommitBatch atomically writes a batch's output and its checkpoint in a
// single transaction. Every write is guarded so a redelivered batch commits
// as a pile of no-ops.
func (s *pgStore) CommitBatch(ctx context.Context, input CommitBatchInput) error {
	for i := range input.RollingWindows {
		if err := input.RollingWindows[i].Validate(); err != nil {
			return err
		}
	}
	if input.Checkpoint.ProcessorName == "" {
		return errors.New("commit batch requires a checkpoint with a processor name")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Latest states: update only when the incoming nonce is newer.
		// in_bonding_curve is ANDed so it can never flip back to true.
		if len(input.LatestStates) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "market_id"}},
				DoUpdates: latestStateAssignments(),
				Where: clause.Where{Exprs: []clause.Expression{
					gorm.Expr("market_latest_state.market_nonce < excluded.market_nonce"),
				}},
			}).Create(&input.LatestStates).Error; err != nil {
				return fmt.Errorf("failed to upsert latest states: %w", err)
			}
		}

		// 2. Rolling windows: whole-row replacement; the merge already
		// deduplicated, so overwriting with the merged arrays is idempotent.
		if len(input.RollingWindows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "market_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"nonces", "volumes", "start_times", "updated_at"}),
			}).Create(&input.RollingWindows).Error; err != nil {
				return fmt.Errorf("failed to upsert rolling windows: %w", err)
			}
		}

		// 3. Periodic buckets are immutable: a re-derived duplicate is
		// dropped rather than compared.
		if len(input.Buckets) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "market_id"}, {Name: "resolution"}, {Name: "closing_nonce"}},
				DoNothing: true,
			}).Create(&input.Buckets).Error; err != nil {
				return fmt.Errorf("failed to insert periodic buckets: %w", err)
			}
		}

		// 4. Open-bucket accumulators: replaced whenever the batch folded a
		// newer event in. On redelivery the guard makes the rewrite a no-op,
		// since every applied event advances closing_nonce.
		if len(input.OpenBuckets) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "market_id"}, {Name: "resolution"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"start_time", "open_nonce", "closing_nonce",
					"has_swap", "open_price", "high_price", "low_price", "close_price",
					"volume_base", "volume_quote", "integrator_fees",
					"pool_fees_base", "pool_fees_quote",
					"n_swaps", "n_chat_messages",
					"starts_in_bonding_curve", "ends_in_bonding_curve",
					"updated_at",
				}),
				Where: clause.Where{Exprs: []clause.Expression{
					gorm.Expr("open_bucket_states.closing_nonce < excluded.closing_nonce"),
				}},
			}).Create(&input.OpenBuckets).Error; err != nil {
				return fmt.Errorf("failed to upsert open bucket states: %w", err)
			}
		}

		// 5. Positions: same nonce guard as latest states, per provider.
		if len(input.Positions) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "provider"}, {Name: "market_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"market_nonce", "lp_coin_balance",
					"base_deposited", "quote_deposited",
					"base_withdrawn", "quote_withdrawn",
					"last_update_time", "updated_at",
				}),
				Where: clause.Where{Exprs: []clause.Expression{
					gorm.Expr("user_liquidity_positions.market_nonce < excluded.market_nonce"),
				}},
			}).Create(&input.Positions).Error; err != nil {
				return fmt.Errorf("failed to upsert liquidity positions: %w", err)
			}
		}

		// 6. Checkpoint moves forward only, inside the same transaction as
		// the rows it covers.
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "processor_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_success_version", "updated_at"}),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("processor_checkpoints.last_success_version < excluded.last_success_version"),
			}},
		}).Create(&input.Checkpoint).Error; err != nil {
			return fmt.Errorf("failed to upsert checkpoint: %w", err)
		}

		return nil
	})
}

// latestStateAssignments lists the market_latest_state columns replaced on a
// newer-nonce upsert. in_bonding_curve is excluded from the plain column set
// and ANDed with the stored value instead.
func latestStateAssignments() clause.Set {
	assignments := clause.AssignmentColumns([]string{
		"market_nonce", "trigger_kind", "emitted_at",
		"transaction_version", "sender",
		"clamm_virtual_reserves_base", "clamm_virtual_reserves_quote",
		"cpamm_real_reserves_base", "cpamm_real_reserves_quote",
		"lp_coin_supply",
		"cumulative_base_volume", "cumulative_quote_volume",
		"cumulative_integrator_fees",
		"cumulative_pool_fees_base", "cumulative_pool_fees_quote",
		"cumulative_n_swaps", "cumulative_n_chat_messages",
		"total_quote_locked", "total_value_locked",
		"market_cap", "fully_diluted_value", "tvl_per_lp_coin_growth",
		"last_swap_is_sell", "last_swap_avg_execution_price",
		"last_swap_base_volume", "last_swap_quote_volume",
		"last_swap_nonce", "last_swap_time",
		"daily_volume", "volume_in_current_minute",
		"updated_at",
	})
	assignments = append(assignments, clause.Assignment{
		Column: clause.Column{Name: "in_bonding_curve"},
		Value:  gorm.Expr("market_latest_state.in_bonding_curve AND excluded.in_bonding_curve"),
	})
	return assignments
}
