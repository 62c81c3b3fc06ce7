package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// SortMode задаёт порядок видимого списка.
type SortMode string

const (
	SortNone      SortMode = "none"
	SortPriceAsc  SortMode = "priceAsc"
	SortPriceDesc SortMode = "priceDesc"
	SortNameAsc   SortMode = "nameAsc"
)

// SpeciesAll - значение фильтра без ограничения по виду.
const SpeciesAll = "All"

// ParseSortMode разбирает режим сортировки; неизвестное значение трактуется как SortNone.
func ParseSortMode(raw string) SortMode {
	switch SortMode(strings.TrimSpace(raw)) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	case SortNameAsc:
		return SortNameAsc
	default:
		return SortNone
	}
}

// Query - параметры витрины: строка поиска, фильтр вида и сортировка.
type Query struct {
	Text    string
	Species string
	Sort    SortMode
}

// Visible вычисляет видимый список. Функция чистая: вход не изменяется.
// Поиск идёт только по названию вида (подстрока без учёта регистра),
// фильтр вида и поиск объединяются через AND, сортировка применяется после фильтрации.
func Visible(pets []domain.Pet, q Query) []domain.Pet {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	species := strings.TrimSpace(q.Species)
	filterBySpecies := species != "" && species != SpeciesAll

	result := make([]domain.Pet, 0, len(pets))
	for _, pet := range pets {
		if filterBySpecies && string(pet.Species) != species {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(string(pet.Species)), needle) {
			continue
		}
		result = append(result, pet)
	}

	switch q.Sort {
	case SortPriceAsc:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Price.LessThan(result[j].Price)
		})
	case SortPriceDesc:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].Price.GreaterThan(result[j].Price)
		})
	case SortNameAsc:
		// Collator не потокобезопасен, поэтому создаётся на каждый вызов.
		c := collate.New(language.English)
		sort.SliceStable(result, func(i, j int) bool {
			return c.CompareString(result[i].Name, result[j].Name) < 0
		})
	}

	return result
}
