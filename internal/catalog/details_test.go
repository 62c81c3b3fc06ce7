package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

func TestDescribe(t *testing.T) {
	details := Describe(pet("2", "Buddy", domain.SpeciesDog, "67.41"))

	assert.Equal(t, "Buddy", details.Pet.Name)
	assert.Equal(t, "Mixed Breed", details.Breed)
	assert.Equal(t, "2 years", details.Age)
	assert.Equal(t, "Female", details.Gender)
	assert.Equal(t, "No", details.Fixed)
	assert.Equal(t, "Buddy is a friendly dog looking for a loving home.", details.Description)
	assert.Equal(t, "Vaccinations up to date.", details.Health)
}

func TestFixedText(t *testing.T) {
	assert.Equal(t, "Yes (spayed / neutered)", fixedText(true))
	assert.Equal(t, "No", fixedText(false))
}
