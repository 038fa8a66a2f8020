package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableRegisterIsIdempotentByName(t *testing.T) {
	tbl := NewTable()
	c1 := tbl.Register("GEN2.freq", TypeFrequency, 0, "GEN2", 1.0)
	c2 := tbl.Register("GEN2.freq", TypeFrequency, 0, "GEN2", 1.0)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableRegisterAssignsImmutableIncreasingIndex(t *testing.T) {
	tbl := NewTable()
	c1 := tbl.Register("Bus1.voltage", TypeVoltage, 1, "", 1.0)
	c2 := tbl.Register("Bus2.voltage", TypeVoltage, 2, "", 1.0)

	assert.Equal(t, 0, c1.Index)
	assert.Equal(t, 1, c2.Index)
	assert.Equal(t, []string{"Bus1.voltage", "Bus2.voltage"}, tbl.Names())
}

func TestResolveSubscriptionsFlags(t *testing.T) {
	sets := BusSets{
		GenBuses:  []int{1, 2},
		XfmrBuses: []int{2, 3},
		LoadBuses: []int{4},
		AllBuses:  []int{1, 2, 3, 4},
	}

	tests := []struct {
		name string
		flag Flag
		want []int
	}{
		{"as-listed", FlagAsListed, []int{5, 9}},
		{"gen", FlagGenBuses, []int{1, 2}},
		{"xfmr", FlagXfmrBuses, []int{2, 3}},
		{"gen-and-xfmr-dedupes", FlagGenAndXfmrBuses, []int{1, 2, 3}},
		{"load", FlagLoadBuses, []int{4}},
		{"all", FlagAllBuses, []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			explicit := []int{9, 5}
			got, err := ResolveSubscriptions(tt.flag, explicit, sets)
			require.NoError(t, err)
			if tt.flag == FlagAsListed {
				assert.Equal(t, []int{5, 9}, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSubscriptionsUnknownFlag(t *testing.T) {
	_, err := ResolveSubscriptions(Flag(99), nil, BusSets{})
	assert.Error(t, err)
}
