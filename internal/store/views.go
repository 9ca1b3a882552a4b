package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/econia-labs/aptos-indexer-processors/internal/domain"
	"github.com/econia-labs/aptos-indexer-processors/internal/store/schema"
)

// GetMarketLatestState retrieves a market's latest state
func (s *pgStore) GetMarketLatestState(ctx context.Context, marketID int64) (*schema.MarketLatestState, error) {
	var state schema.MarketLatestState
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest state for market %d: %w", marketID, err)
	}
	return &state, nil
}

// GetTopMarketsByDailyVolume lists markets ordered by trailing 24h volume
func (s *pgStore) GetTopMarketsByDailyVolume(ctx context.Context, limit int) ([]schema.MarketLatestState, error) {
	if limit <= 0 {
		limit = 20
	}

	var states []schema.MarketLatestState
	if err := s.db.WithContext(ctx).
		Order("daily_volume DESC, market_id ASC").
		Limit(limit).
		Find(&states).Error; err != nil {
		return nil, fmt.Errorf("failed to get top markets: %w", err)
	}
	return states, nil
}

// GetProviderPositions lists a provider's liquidity positions across markets.
// Positions whose balance dropped back to zero are kept; their lifetime
// totals still matter.
func (s *pgStore) GetProviderPositions(ctx context.Context, provider string) ([]schema.UserLiquidityPosition, error) {
	var positions []schema.UserLiquidityPosition
	if err := s.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("market_id ASC").
		Find(&positions).Error; err != nil {
		return nil, fmt.Errorf("failed to get positions for provider %s: %w", provider, err)
	}
	return positions, nil
}

// GetBuckets lists a market's finalized candles for one resolution within
// [from, to), newest first
func (s *pgStore) GetBuckets(ctx context.Context, marketID int64, resolution domain.Resolution, from, to int64, limit int) ([]schema.PeriodicBucket, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	q := s.db.WithContext(ctx).
		Where("market_id = ? AND resolution = ?", marketID, resolution)
	if from > 0 {
		q = q.Where("start_time >= ?", from)
	}
	if to > 0 {
		q = q.Where("start_time < ?", to)
	}

	var buckets []schema.PeriodicBucket
	if err := q.Order("start_time DESC").Limit(limit).Find(&buckets).Error; err != nil {
		return nil, fmt.Errorf("failed to get buckets for market %d: %w", marketID, err)
	}
	return buckets, nil
}

// priceFeedLimit caps the feed at the top markets by daily volume.
const priceFeedLimit = 25

// GetPriceFeed computes the trailing 24h price change of the top markets by
// daily volume. The open is the open price of the oldest 1m bucket inside the
// window; the close is the market's last swap price. Markets with no swap in
// the window are omitted.
func (s *pgStore) GetPriceFeed(ctx context.Context) ([]PriceFeedEntry, error) {
	var entries []PriceFeedEntry
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			mls.market_id,
			opens.open_price,
			mls.last_swap_avg_execution_price AS close_price,
			CASE
				WHEN opens.open_price = 0 THEN 0
				ELSE (mls.last_swap_avg_execution_price - opens.open_price) / opens.open_price * 100
			END AS delta_percent,
			mls.daily_volume,
			mls.market_nonce
		FROM market_latest_state mls
		JOIN LATERAL (
			SELECT pb.open_price
			FROM periodic_buckets pb
			WHERE pb.market_id = mls.market_id
			  AND pb.resolution = '1m'
			  AND pb.start_time >= mls.emitted_at - 24 * 60 * 60 * 1000000::bigint
			  AND pb.n_swaps > 0
			ORDER BY pb.start_time ASC
			LIMIT 1
		) opens ON TRUE
		ORDER BY mls.daily_volume DESC, mls.market_id ASC
		LIMIT ?
	`, priceFeedLimit).Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute price feed: %w", err)
	}
	return entries, nil
}
