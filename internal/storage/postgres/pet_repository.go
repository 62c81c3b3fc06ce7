package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

const defaultPageSize = 20

type petRepository struct {
	db *sql.DB
}

// NewPetRepository создаёт PostgreSQL-реализацию PetRepository.
func NewPetRepository(store *Store) domain.PetRepository {
	return &petRepository{db: store.DB()}
}

// ListPets читает страницу в порядке добавления (created_at, id).
func (r *petRepository) ListPets(ctx context.Context, page, pageSize int) ([]domain.Pet, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, species, price, adoption_status
		FROM pets
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list pets: %w", err)
	}
	defer rows.Close()

	pets := make([]domain.Pet, 0, pageSize)
	for rows.Next() {
		pet, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		pets = append(pets, pet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pet rows: %w", err)
	}

	return pets, nil
}

func (r *petRepository) GetPet(ctx context.Context, id string) (domain.Pet, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, species, price, adoption_status
		FROM pets
		WHERE id = $1
	`, id)

	pet, err := scanPet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Pet{}, false, nil
		}
		return domain.Pet{}, false, err
	}
	return pet, true, nil
}

// MarkAdopted обновляет статус одним запросом; неизвестные ID не считаются ошибкой.
func (r *petRepository) MarkAdopted(ctx context.Context, petIDs []string) error {
	if len(petIDs) == 0 {
		return nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE pets
		SET adoption_status = $1,
		    updated_at = $2
		WHERE id = ANY($3)
	`, string(domain.AdoptionStatusAdopted), time.Now().UTC(), petIDs); err != nil {
		return fmt.Errorf("mark pets adopted: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPet(row rowScanner) (domain.Pet, error) {
	var (
		pet     domain.Pet
		species string
		status  string
	)
	if err := row.Scan(&pet.ID, &pet.Name, &species, &pet.Price, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Pet{}, err
		}
		return domain.Pet{}, fmt.Errorf("scan pet: %w", err)
	}
	pet.Species = domain.Species(species)
	pet.AdoptionStatus = domain.AdoptionStatus(status)
	return pet, nil
}

var _ domain.PetRepository = (*petRepository)(nil)
