package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Species - вид животного в каталоге.
type Species string

const (
	SpeciesDog  Species = "Dog"
	SpeciesCat  Species = "Cat"
	SpeciesFish Species = "Fish"
	SpeciesBird Species = "Bird"
)

// AllSpecies перечисляет поддерживаемые виды в порядке фильтров витрины.
var AllSpecies = []Species{SpeciesDog, SpeciesCat, SpeciesFish, SpeciesBird}

// Valid проверяет, что вид поддерживается.
func (s Species) Valid() bool {
	switch s {
	case SpeciesDog, SpeciesCat, SpeciesFish, SpeciesBird:
		return true
	default:
		return false
	}
}

// ParseSpecies разбирает вид без учёта регистра.
func ParseSpecies(raw string) (Species, error) {
	raw = strings.TrimSpace(raw)
	for _, s := range AllSpecies {
		if strings.EqualFold(string(s), raw) {
			return s, nil
		}
	}
	return "", ErrSpeciesInvalid
}

// AdoptionStatus - внешнее поле питомца, меняется только при оформлении.
type AdoptionStatus string

const (
	AdoptionStatusAvailable AdoptionStatus = "Available"
	AdoptionStatusAdopted   AdoptionStatus = "Adopted"
)

// Pet - карточка питомца. Идентичность определяется ID.
type Pet struct {
	ID             string
	Name           string
	Species        Species
	Price          decimal.Decimal
	AdoptionStatus AdoptionStatus
}

// Validate проверяет инварианты карточки.
func (p Pet) Validate() []error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, ErrPetIDRequired)
	}
	if !p.Species.Valid() {
		errs = append(errs, ErrSpeciesInvalid)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrPriceNegative)
	}
	return errs
}

// BasePets - стартовый набор каталога.
func BasePets() []Pet {
	return []Pet{
		{ID: "1", Name: "Goldie", Species: SpeciesFish, Price: decimal.RequireFromString("17.38"), AdoptionStatus: AdoptionStatusAvailable},
		{ID: "2", Name: "Buddy", Species: SpeciesDog, Price: decimal.RequireFromString("67.41"), AdoptionStatus: AdoptionStatusAvailable},
		{ID: "3", Name: "Luna", Species: SpeciesCat, Price: decimal.RequireFromString("45.99"), AdoptionStatus: AdoptionStatusAvailable},
		{ID: "4", Name: "Sunny", Species: SpeciesBird, Price: decimal.RequireFromString("29.99"), AdoptionStatus: AdoptionStatusAvailable},
	}
}
