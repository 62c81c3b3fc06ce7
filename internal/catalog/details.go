package catalog

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

const (
	defaultBreed  = "Mixed Breed"
	defaultAge    = "2 years"
	defaultGender = "Female"
	defaultHealth = "Vaccinations up to date."

	fixedYes = "Yes (spayed / neutered)"
	fixedNo  = "No"
)

// Details - карточка питомца для экрана подробностей.
type Details struct {
	Pet         domain.Pet
	Breed       string
	Age         string
	Gender      string
	// Fixed - отметка о стерилизации, по умолчанию "No".
	Fixed       string
	Description string
	Health      string
}

// Describe дополняет питомца значениями по умолчанию.
func Describe(pet domain.Pet) Details {
	return Details{
		Pet:         pet,
		Breed:       defaultBreed,
		Age:         defaultAge,
		Gender:      defaultGender,
		Fixed:       fixedText(false),
		Description: fmt.Sprintf("%s is a friendly %s looking for a loving home.", pet.Name, strings.ToLower(string(pet.Species))),
		Health:      defaultHealth,
	}
}

func fixedText(fixed bool) string {
	if fixed {
		return fixedYes
	}
	return fixedNo
}
