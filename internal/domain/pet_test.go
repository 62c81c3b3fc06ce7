package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecies(t *testing.T) {
	got, err := ParseSpecies(" fish ")
	require.NoError(t, err)
	assert.Equal(t, SpeciesFish, got)

	_, err = ParseSpecies("Dragon")
	require.ErrorIs(t, err, ErrSpeciesInvalid)
}

func TestPetValidate(t *testing.T) {
	valid := Pet{ID: "1", Name: "Goldie", Species: SpeciesFish, Price: decimal.RequireFromString("17.38")}
	assert.Empty(t, valid.Validate())

	invalid := Pet{Species: "Dragon", Price: decimal.NewFromInt(-1)}
	assert.Len(t, invalid.Validate(), 3)
}

func TestBasePets(t *testing.T) {
	pets := BasePets()
	require.Len(t, pets, 4)

	ids := make(map[string]struct{}, len(pets))
	for _, pet := range pets {
		assert.Empty(t, pet.Validate())
		assert.Equal(t, AdoptionStatusAvailable, pet.AdoptionStatus)
		ids[pet.ID] = struct{}{}
	}
	assert.Len(t, ids, 4)
	assert.Equal(t, "Goldie", pets[0].Name)
	assert.True(t, pets[0].Price.Equal(decimal.RequireFromString("17.38")))
}

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "4111111111111111", want: "****1111"},
		{in: "4242 4242 4242 4242", want: "****4242"},
		{in: "123", want: "****123"},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, MaskCardNumber(tc.in))
		})
	}
}

func TestSessionAuthenticated(t *testing.T) {
	assert.False(t, Session{}.Authenticated())
	assert.False(t, Session{Email: "a@b.c"}.Authenticated())
	assert.True(t, Session{CustomerID: "c-1"}.Authenticated())
}
