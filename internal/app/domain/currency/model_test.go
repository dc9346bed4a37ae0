package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	rates := Rates{USD: 1, EUR: 0.5, BRL: 5}

	got, err := Convert(10, EUR, BRL, rates)
	require.NoError(t, err)
	assert.InDelta(t, 100, got, 1e-9)

	got, err = Convert(42, COP, COP, rates)
	require.NoError(t, err)
	assert.Equal(t, 42.0, got)

	_, err = Convert(1, USD, COP, rates)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1,234,567.89", Format(1234567.891, USD))
	assert.Equal(t, "R$0.50", Format(0.5, BRL))
	assert.Equal(t, "-€1,000.00", Format(-1000, EUR))
	assert.Equal(t, "XYZ 12.00", Format(12, "XYZ"))
}

func TestGroup(t *testing.T) {
	assert.Equal(t, "0", Group(0))
	assert.Equal(t, "999", Group(999))
	assert.Equal(t, "1,000", Group(1000))
	assert.Equal(t, "-12,345", Group(-12345))
}
