package catalog

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

func samplePets() []domain.Pet {
	return []domain.Pet{
		pet("1", "Goldie", domain.SpeciesFish, "17.38"),
		pet("2", "Buddy", domain.SpeciesDog, "67.41"),
		pet("3", "Luna", domain.SpeciesCat, "45.99"),
		pet("4", "Sunny", domain.SpeciesBird, "29.99"),
		pet("5", "Max", domain.SpeciesDog, "17.38"),
		pet("6", "Émile", domain.SpeciesCat, "99.00"),
	}
}

func randomPets(r *rand.Rand, n int) []domain.Pet {
	names := []string{"Goldie", "Buddy", "Luna", "Sunny", "max", "Zoe", "Ángel", "bella"}
	pets := make([]domain.Pet, 0, n)
	for i := 0; i < n; i++ {
		pets = append(pets, domain.Pet{
			ID:      fmt.Sprintf("pet-%d", i),
			Name:    names[r.Intn(len(names))],
			Species: domain.AllSpecies[r.Intn(len(domain.AllSpecies))],
			Price:   decimal.New(int64(r.Intn(10000)), -2),
		})
	}
	return pets
}

func TestVisible_EmptyQueryReturnsAllInOrder(t *testing.T) {
	pets := samplePets()
	got := Visible(pets, Query{})
	assert.Equal(t, ids(pets), ids(got))
}

func TestVisible_QueryMatchesSpeciesOnly(t *testing.T) {
	pets := samplePets()

	assert.Equal(t, []string{"2", "5"}, ids(Visible(pets, Query{Text: "DO"})))
	assert.Empty(t, Visible(pets, Query{Text: "buddy"}), "pet names are not searched")
	assert.Equal(t, []string{"1"}, ids(Visible(pets, Query{Text: "  fish "})))
}

func TestVisible_QueryAndSpeciesCompose(t *testing.T) {
	pets := samplePets()

	assert.Equal(t, []string{"3", "6"}, ids(Visible(pets, Query{Species: "Cat"})))
	assert.Empty(t, Visible(pets, Query{Species: "Cat", Text: "dog"}))
	assert.Equal(t, []string{"3", "6"}, ids(Visible(pets, Query{Species: "Cat", Text: "a"})))
	assert.Len(t, Visible(pets, Query{Species: SpeciesAll}), len(pets))
}

func TestVisible_Sorts(t *testing.T) {
	pets := samplePets()

	asc := Visible(pets, Query{Sort: SortPriceAsc})
	assert.Equal(t, []string{"1", "5", "4", "3", "2", "6"}, ids(asc), "equal prices keep insertion order")

	desc := Visible(pets, Query{Sort: SortPriceDesc})
	assert.Equal(t, []string{"6", "2", "3", "4", "1", "5"}, ids(desc))

	byName := Visible(pets, Query{Sort: SortNameAsc})
	names := make([]string, 0, len(byName))
	for _, p := range byName {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Buddy", "Émile", "Goldie", "Luna", "Max", "Sunny"}, names)
}

func TestVisible_DoesNotMutateInput(t *testing.T) {
	pets := samplePets()
	before := ids(pets)
	_ = Visible(pets, Query{Sort: SortPriceDesc})
	assert.Equal(t, before, ids(pets))
}

func TestVisible_FilterProperty(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	queries := []string{"", "d", "O", "cat", "ish", "bird", "x", " Fi "}

	for i := 0; i < 200; i++ {
		pets := randomPets(r, r.Intn(30))
		q := queries[r.Intn(len(queries))]
		needle := strings.ToLower(strings.TrimSpace(q))

		var want []string
		for _, p := range pets {
			if strings.Contains(strings.ToLower(string(p.Species)), needle) {
				want = append(want, p.ID)
			}
		}

		got := ids(Visible(pets, Query{Text: q}))
		if len(want) == 0 {
			require.Empty(t, got)
			continue
		}
		require.Equal(t, want, got, "query %q", q)
	}
}

func TestVisible_SortIsPermutationProperty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	modes := []SortMode{SortNone, SortPriceAsc, SortPriceDesc, SortNameAsc}

	for i := 0; i < 200; i++ {
		pets := randomPets(r, r.Intn(40))
		mode := modes[r.Intn(len(modes))]

		got := Visible(pets, Query{Sort: mode})
		require.Len(t, got, len(pets))

		wantIDs := ids(pets)
		gotIDs := ids(got)
		sort.Strings(wantIDs)
		sort.Strings(gotIDs)
		require.Equal(t, wantIDs, gotIDs, "sort %s must be a permutation", mode)
	}
}

func TestParseSortMode(t *testing.T) {
	assert.Equal(t, SortPriceAsc, ParseSortMode("priceAsc"))
	assert.Equal(t, SortPriceDesc, ParseSortMode(" priceDesc "))
	assert.Equal(t, SortNameAsc, ParseSortMode("nameAsc"))
	assert.Equal(t, SortNone, ParseSortMode(""))
	assert.Equal(t, SortNone, ParseSortMode("random"))
}
