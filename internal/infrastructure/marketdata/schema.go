package marketdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaManager idempotently creates the per-venue tables before the engine
// starts writing.
type SchemaManager struct {
	pool *pgxpool.Pool
}

// NewSchemaManager wraps a pool for schema maintenance.
func NewSchemaManager(pool *pgxpool.Pool) *SchemaManager {
	return &SchemaManager{pool: pool}
}

// EnsureVenueSchema creates the venue's trades, candles, and snapshot
// tables if they do not exist yet.
func (m *SchemaManager) EnsureVenueSchema(ctx context.Context, venue string) error {
	prefix, err := TablePrefix(venue)
	if err != nil {
		return err
	}

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_trades (
				trade_id UUID PRIMARY KEY,
				venue_trade_id TEXT NOT NULL,
				symbol TEXT NOT NULL,
				side TEXT NOT NULL,
				price DOUBLE PRECISION NOT NULL,
				size DOUBLE PRECISION NOT NULL,
				notional DOUBLE PRECISION NOT NULL,
				is_whale BOOLEAN NOT NULL DEFAULT FALSE,
				traded_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, prefix),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %[1]s_trades_symbol_traded_at_idx
			ON %[1]s_trades (symbol, traded_at)`, prefix),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_candles (
				candle_id UUID PRIMARY KEY,
				symbol TEXT NOT NULL,
				interval_seconds BIGINT NOT NULL,
				period_start TIMESTAMPTZ NOT NULL,
				open DOUBLE PRECISION NOT NULL,
				high DOUBLE PRECISION NOT NULL,
				low DOUBLE PRECISION NOT NULL,
				close DOUBLE PRECISION NOT NULL,
				volume DOUBLE PRECISION NOT NULL,
				trade_count BIGINT NOT NULL,
				UNIQUE (symbol, interval_seconds, period_start)
			)`, prefix),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s_orderbook_snapshots (
				snapshot_id UUID PRIMARY KEY,
				symbol TEXT NOT NULL,
				bids JSONB NOT NULL,
				asks JSONB NOT NULL,
				mid_price DOUBLE PRECISION NOT NULL,
				spread_bps DOUBLE PRECISION NOT NULL,
				snapshot_at TIMESTAMPTZ NOT NULL
			)`, prefix),
	}

	for _, stmt := range statements {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema for venue %s: %w", venue, err)
		}
	}
	return nil
}

// TablePrefix converts a venue name into a safe SQL identifier prefix.
// Venue names come from the operator's config file, not from the wire, but
// they still never reach SQL unsanitized.
func TablePrefix(venue string) (string, error) {
	lowered := strings.ToLower(strings.TrimSpace(venue))
	if lowered == "" {
		return "", fmt.Errorf("venue name is empty")
	}
	var b strings.Builder
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-', r == ' ', r == '.':
			b.WriteRune('_')
		default:
			return "", fmt.Errorf("venue name %q contains unsupported character %q", venue, r)
		}
	}
	prefix := b.String()
	if prefix[0] >= '0' && prefix[0] <= '9' {
		prefix = "v" + prefix
	}
	return prefix, nil
}
