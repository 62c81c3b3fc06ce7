package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/catalog"
	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// maxBrowsePages ограничивает число страниц, подгружаемых одним запросом.
const maxBrowsePages = 10

// Handler отдаёт каталог без сессии: каждый запрос строит свой catalog.Store.
type Handler struct {
	newSource func() catalog.PageSource
	pets      domain.PetRepository
	logger    *log.Entry
}

// NewHandler создаёт обработчик. pets может быть nil, тогда карточка ищется только в каталоге.
func NewHandler(newSource func() catalog.PageSource, pets domain.PetRepository, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	if newSource == nil {
		newSource = func() catalog.PageSource { return catalog.NewSyntheticSource(nil) }
	}
	return &Handler{newSource: newSource, pets: pets, logger: logger}
}

type petJSON struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Species        string `json:"species"`
	Price          string `json:"price"`
	AdoptionStatus string `json:"adoption_status"`
}

type listPetsResponse struct {
	Pets      []petJSON `json:"pets"`
	Pages     int       `json:"pages"`
	Exhausted bool      `json:"exhausted"`
}

type petDetailsResponse struct {
	Pet         petJSON `json:"pet"`
	Breed       string  `json:"breed"`
	Age         string  `json:"age"`
	Gender      string  `json:"gender"`
	Fixed       string  `json:"fixed"`
	Description string  `json:"description"`
	Health      string  `json:"health"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ListPets обслуживает GET /api/v1/pets?q=&species=&sort=&pages=.
func (h *Handler) ListPets(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	pages := catalog.FirstPage
	if raw := strings.TrimSpace(params.Get("pages")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < catalog.FirstPage || n > maxBrowsePages {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: "pages must be between 1 and " + strconv.Itoa(maxBrowsePages)})
			return
		}
		pages = n
	}

	query := catalog.Query{Text: params.Get("q"), Sort: catalog.ParseSortMode(params.Get("sort"))}
	if species := strings.TrimSpace(params.Get("species")); species != "" && !strings.EqualFold(species, catalog.SpeciesAll) {
		parsed, err := domain.ParseSpecies(species)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		query.Species = string(parsed)
	}

	store := catalog.NewStore(h.newSource(), h.logger.WithField("component", "catalog"))
	store.LoadInitial(r.Context())
	for store.Page() < pages && !store.Exhausted() {
		if added := store.LoadMore(r.Context(), store.Page()); len(added) == 0 {
			break
		}
	}

	visible := catalog.Visible(store.Pets(), query)
	response := listPetsResponse{
		Pets:      make([]petJSON, 0, len(visible)),
		Pages:     store.Page(),
		Exhausted: store.Exhausted(),
	}
	for _, pet := range visible {
		response.Pets = append(response.Pets, toPetJSON(pet))
	}
	respondJSON(w, http.StatusOK, response)
}

// GetPet обслуживает GET /api/v1/pets/{petID}.
func (h *Handler) GetPet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "petID"))

	pet, found, err := h.lookup(r, id)
	if err != nil {
		h.logger.WithError(err).WithField("pet_id", id).Error("pet lookup failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if !found {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: domain.ErrPetNotFound.Error()})
		return
	}

	details := catalog.Describe(pet)
	respondJSON(w, http.StatusOK, petDetailsResponse{
		Pet:         toPetJSON(details.Pet),
		Breed:       details.Breed,
		Age:         details.Age,
		Gender:      details.Gender,
		Fixed:       details.Fixed,
		Description: details.Description,
		Health:      details.Health,
	})
}

// lookup ищет питомца в тех же страницах, что отдаёт ListPets, затем в хранилище.
func (h *Handler) lookup(r *http.Request, id string) (domain.Pet, bool, error) {
	store := catalog.NewStore(h.newSource(), h.logger.WithField("component", "catalog"))
	store.LoadInitial(r.Context())
	for {
		if pet, ok := store.Lookup(id); ok {
			return pet, true, nil
		}
		if store.Page() >= maxBrowsePages || store.Exhausted() {
			break
		}
		if added := store.LoadMore(r.Context(), store.Page()); len(added) == 0 {
			break
		}
	}

	if h.pets == nil {
		return domain.Pet{}, false, nil
	}
	return h.pets.GetPet(r.Context(), id)
}

func toPetJSON(pet domain.Pet) petJSON {
	return petJSON{
		ID:             pet.ID,
		Name:           pet.Name,
		Species:        string(pet.Species),
		Price:          pet.Price.StringFixed(2),
		AdoptionStatus: string(pet.AdoptionStatus),
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
