package num

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSafeDiv(t *testing.T) {
	require.True(t, SafeDiv(decimal.NewFromInt(1), decimal.Zero).IsZero())
	require.Equal(t, "0.333333333333333333", SafeDiv(decimal.NewFromInt(1), decimal.NewFromInt(3)).String())
	require.Equal(t, "2.5", SafeDiv(decimal.NewFromInt(5), decimal.NewFromInt(2)).String())
}

func TestMinDecimal(t *testing.T) {
	require.Equal(t, "-1", MinDecimal(decimal.NewFromInt(-1), decimal.Zero).String())
	require.Equal(t, "2", MinDecimal(decimal.NewFromInt(10), decimal.NewFromInt(2)).String())
}
