package catalog

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// FirstPage - номер стартовой страницы каталога.
const FirstPage = 1

const defaultPageSize = 20

// PageSource отдаёт страницы каталога. Пустая страница означает конец данных.
type PageSource interface {
	Page(ctx context.Context, page int) ([]domain.Pet, error)
}

// SyntheticSource бесконечно повторяет базовый набор: страница n>1 содержит
// копии базовых питомцев с суффиксом "-p{n}" в идентификаторе.
type SyntheticSource struct {
	base []domain.Pet
}

// NewSyntheticSource создаёт источник на основе base (nil - стандартный набор).
func NewSyntheticSource(base []domain.Pet) *SyntheticSource {
	if base == nil {
		base = domain.BasePets()
	}
	cloned := make([]domain.Pet, len(base))
	copy(cloned, base)
	return &SyntheticSource{base: cloned}
}

// Page никогда не возвращает ошибку и пустую страницу.
func (s *SyntheticSource) Page(_ context.Context, page int) ([]domain.Pet, error) {
	result := make([]domain.Pet, len(s.base))
	copy(result, s.base)
	if page <= FirstPage {
		return result, nil
	}
	for i := range result {
		result[i].ID = fmt.Sprintf("%s-p%d", result[i].ID, page)
	}
	return result, nil
}

// RepositorySource читает страницы из удалённого хранилища.
type RepositorySource struct {
	repo     domain.PetRepository
	pageSize int
}

// NewRepositorySource создаёт источник поверх PetRepository.
func NewRepositorySource(repo domain.PetRepository, pageSize int) *RepositorySource {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &RepositorySource{repo: repo, pageSize: pageSize}
}

func (s *RepositorySource) Page(ctx context.Context, page int) ([]domain.Pet, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("pet repository is not configured")
	}
	return s.repo.ListPets(ctx, page, s.pageSize)
}

var (
	_ PageSource = (*SyntheticSource)(nil)
	_ PageSource = (*RepositorySource)(nil)
)
