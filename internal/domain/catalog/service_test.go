package catalog

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweepstar/service-booking/internal/pkg/apperror"
)

func TestNewService_AssignsIDs(t *testing.T) {
	s, err := NewService("Deep clean", "whole flat", decimal.NewFromInt(50), 60,
		[]OptionGroup{{Name: "Size", Required: true, Options: []Option{{Name: "Small"}, {Name: "Large", PriceDelta: decimal.NewFromInt(10), DurationDelta: 20}}}},
		[]Extra{{Name: "Oven", PriceDelta: decimal.NewFromInt(5), DurationDelta: 5, MaxQuantity: 3}},
	)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.True(t, s.Active)
	g := s.OptionGroups[0]
	assert.NotEqual(t, uuid.Nil, g.ID)
	for _, o := range g.Options {
		assert.NotEqual(t, uuid.Nil, o.ID)
		assert.Equal(t, g.ID, o.GroupID)
	}
	assert.NotEqual(t, uuid.Nil, s.Extras[0].ID)

	o, grp, ok := s.FindOption(g.Options[1].ID)
	require.True(t, ok)
	assert.Equal(t, "Large", o.Name)
	assert.Equal(t, g.ID, grp.ID)

	_, ok = s.FindExtra(uuid.New())
	assert.False(t, ok)
}

func TestNewService_Validation(t *testing.T) {
	dup := uuid.New()
	tests := []struct {
		name     string
		svcName  string
		price    decimal.Decimal
		duration int
		groups   []OptionGroup
		extras   []Extra
	}{
		{"missing name", " ", decimal.NewFromInt(10), 30, nil, nil},
		{"negative price", "x", decimal.NewFromInt(-1), 30, nil, nil},
		{"zero duration", "x", decimal.NewFromInt(10), 0, nil, nil},
		{"empty group", "x", decimal.NewFromInt(10), 30, []OptionGroup{{Name: "g"}}, nil},
		{"negative max quantity", "x", decimal.NewFromInt(10), 30, nil, []Extra{{Name: "e", MaxQuantity: -1}}},
		{"duplicate ids", "x", decimal.NewFromInt(10), 30, nil, []Extra{{ID: dup, Name: "a"}, {ID: dup, Name: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.svcName, "", tt.price, tt.duration, tt.groups, tt.extras)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrValidation))
		})
	}
}

func TestService_RedefineKeepsIdentityOnError(t *testing.T) {
	s, err := NewService("Standard", "", decimal.NewFromInt(40), 45, nil, nil)
	require.NoError(t, err)

	err = s.Redefine("", "", decimal.NewFromInt(40), 45, nil, nil)
	require.Error(t, err)
	assert.Equal(t, "Standard", s.Name)

	require.NoError(t, s.Redefine("Standard+", "more", decimal.NewFromInt(45), 50, nil, nil))
	assert.Equal(t, "Standard+", s.Name)
	assert.True(t, s.Active)
}

func TestExtra_AllowsQuantity(t *testing.T) {
	bounded := Extra{MaxQuantity: 2}
	assert.False(t, bounded.AllowsQuantity(0))
	assert.True(t, bounded.AllowsQuantity(1))
	assert.True(t, bounded.AllowsQuantity(2))
	assert.False(t, bounded.AllowsQuantity(3))

	unbounded := Extra{}
	assert.True(t, unbounded.AllowsQuantity(1000))
	assert.False(t, unbounded.AllowsQuantity(-1))
}
