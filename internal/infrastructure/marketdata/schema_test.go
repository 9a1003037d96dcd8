package marketdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablePrefix(t *testing.T) {
	tests := []struct {
		name    string
		venue   string
		want    string
		wantErr bool
	}{
		{name: "plain name", venue: "coinruler", want: "coinruler"},
		{name: "uppercase lowered", venue: "CoinRuler", want: "coinruler"},
		{name: "dash becomes underscore", venue: "coin-ruler", want: "coin_ruler"},
		{name: "space becomes underscore", venue: "coin ruler", want: "coin_ruler"},
		{name: "dot becomes underscore", venue: "coin.ruler", want: "coin_ruler"},
		{name: "leading digit gets prefix", venue: "1inch", want: "v1inch"},
		{name: "surrounding whitespace trimmed", venue: "  coinruler  ", want: "coinruler"},
		{name: "empty", venue: "", wantErr: true},
		{name: "whitespace only", venue: "   ", wantErr: true},
		{name: "sql injection attempt", venue: `x";DROP TABLE t;--`, wantErr: true},
		{name: "unicode rejected", venue: "börse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TablePrefix(tt.venue)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRepositoryWithPoolRejectsBadVenue(t *testing.T) {
	_, err := NewRepositoryWithPool(nil, "bad venue!")
	assert.Error(t, err)
}
