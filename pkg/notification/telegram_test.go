package notification

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeCommandParsing(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "ticker only",
			text: "/analyze AAPL",
			want: map[string]string{
				"ticker": "AAPL", "interval": "", "trade_type": "", "entry_price": "", "entry_date": "",
			},
		},
		{
			name: "ticker and interval",
			text: "/analyze AAPL 1wk",
			want: map[string]string{
				"ticker": "AAPL", "interval": "1wk", "trade_type": "", "entry_price": "", "entry_date": "",
			},
		},
		{
			name: "full entry",
			text: "/analyze AAPL 1d B 187.5 2025-01-10",
			want: map[string]string{
				"ticker": "AAPL", "interval": "1d", "trade_type": "B", "entry_price": "187.5", "entry_date": "2025-01-10",
			},
		},
		{
			name: "entry without interval",
			text: "/analyze 005930.KS b 56000 2025-02-03",
			want: map[string]string{
				"ticker": "005930.KS", "interval": "", "trade_type": "b", "entry_price": "56000", "entry_date": "2025-02-03",
			},
		},
		{
			name: "monthly interval",
			text: "/analyze MSFT 1mo",
			want: map[string]string{
				"ticker": "MSFT", "interval": "1mo", "trade_type": "", "entry_price": "", "entry_date": "",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := analyzeRegexp.FindStringSubmatch(tt.text)
			require.NotEmpty(t, match)
			require.Equal(t, tt.want, extractCommandParams(analyzeRegexp, match))
		})
	}
}

func TestAnalyzeCommandParsingRejectsMissingTicker(t *testing.T) {
	require.Empty(t, analyzeRegexp.FindStringSubmatch("/analyze"))
	require.Empty(t, analyzeRegexp.FindStringSubmatch("/analyze   "))
}
