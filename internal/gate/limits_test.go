package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoutgw/internal/domain"
)

func TestInjector_TopStrict_RejectsOversizedBound(t *testing.T) {
	inj := NewInjector(DialectTop, ModeStrict)

	_, _, err := inj.ApplyCap("SELECT TOP (50000) brand FROM gold.v_transactions_flat", 10000)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ViolationBoundExceeded, verr.Kind)
	assert.Contains(t, verr.Message, "10000")
}

func TestInjector_TopLenient_ClampsOversizedBound(t *testing.T) {
	inj := NewInjector(DialectTop, ModeLenient)

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "parenthesized",
			text: "SELECT TOP (50000) brand FROM gold.v_transactions_flat",
			want: "SELECT TOP (10000) brand FROM gold.v_transactions_flat",
		},
		{
			name: "bare",
			text: "SELECT TOP 50000 brand FROM gold.v_transactions_flat",
			want: "SELECT TOP 10000 brand FROM gold.v_transactions_flat",
		},
		{
			name: "lowercase",
			text: "select top (99999) brand from gold.v_transactions_flat",
			want: "select top (10000) brand from gold.v_transactions_flat",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, bound, err := inj.ApplyCap(tc.text, 10000)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, 10000, bound)
		})
	}
}

func TestInjector_TopKeepsInCapBound(t *testing.T) {
	for _, mode := range []Mode{ModeStrict, ModeLenient} {
		inj := NewInjector(DialectTop, mode)

		text := "SELECT TOP (500) brand FROM gold.v_transactions_flat"
		got, bound, err := inj.ApplyCap(text, 10000)
		require.NoError(t, err)
		assert.Equal(t, text, got, "in-cap bound must be left untouched")
		assert.Equal(t, 500, bound)
	}
}

func TestInjector_TopInjectsWhenAbsent(t *testing.T) {
	inj := NewInjector(DialectTop, ModeStrict)

	got, bound, err := inj.ApplyCap("SELECT brand FROM gold.v_transactions_flat", 10000)
	require.NoError(t, err)
	assert.Equal(t, "SELECT TOP (10000) brand FROM gold.v_transactions_flat", got)
	assert.Equal(t, 10000, bound)
}

func TestInjector_TopInjectsAfterDistinct(t *testing.T) {
	inj := NewInjector(DialectTop, ModeLenient)

	got, _, err := inj.ApplyCap("SELECT DISTINCT brand FROM gold.v_transactions_flat", 1000)
	require.NoError(t, err)
	assert.Equal(t, "SELECT DISTINCT TOP (1000) brand FROM gold.v_transactions_flat", got)
}

func TestInjector_TopRejectsNonSelect(t *testing.T) {
	inj := NewInjector(DialectTop, ModeLenient)

	_, _, err := inj.ApplyCap("VALUES (1)", 100)
	require.Error(t, err)
}

func TestInjector_LimitAppendsWhenAbsent(t *testing.T) {
	inj := NewInjector(DialectLimit, ModeLenient)

	got, bound, err := inj.ApplyCap("SELECT brand FROM gold.v_transactions_flat", 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT brand FROM gold.v_transactions_flat LIMIT 50", got)
	assert.Equal(t, 50, bound)
}

func TestInjector_LimitStripsTrailingSemicolon(t *testing.T) {
	inj := NewInjector(DialectLimit, ModeLenient)

	got, _, err := inj.ApplyCap("SELECT brand FROM gold.v_transactions_flat;", 50)
	require.NoError(t, err)
	assert.Equal(t, "SELECT brand FROM gold.v_transactions_flat LIMIT 50", got)
}

func TestInjector_LimitStrict_RejectsOversizedBound(t *testing.T) {
	inj := NewInjector(DialectLimit, ModeStrict)

	_, _, err := inj.ApplyCap("SELECT brand FROM gold.v_transactions_flat LIMIT 100000", 10000)
	require.Error(t, err)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.ViolationBoundExceeded, verr.Kind)
}

func TestInjector_LimitLenient_ClampsKeepingOffset(t *testing.T) {
	inj := NewInjector(DialectLimit, ModeLenient)

	got, bound, err := inj.ApplyCap("SELECT brand FROM gold.v_transactions_flat LIMIT 100000 OFFSET 20", 10000)
	require.NoError(t, err)
	assert.Equal(t, "SELECT brand FROM gold.v_transactions_flat LIMIT 10000 OFFSET 20", got)
	assert.Equal(t, 10000, bound)
}
