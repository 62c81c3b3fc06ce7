// Package idempotency реализует повторяемую обработку запросов по idempotency-key.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

// DefaultTTL - срок хранения результата по ключу.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress - запрос с тем же ключом ещё обрабатывается.
var ErrRequestInProgress = errors.New("request with this idempotency key is still in progress")

// Guard регистрирует ключи и сохраняет результат обработки для повторов.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard поверх репозитория. ttl<=0 заменяется DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Begin захватывает ключ. Если запрос уже завершён, возвращает сохранённую запись и replay=true.
func (g *Guard) Begin(key, requestHash string) (record domain.IdempotencyRecord, replay bool, err error) {
	record, err = g.repo.CreateProcessing(key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return record, false, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusProcessing {
			return record, false, ErrRequestInProgress
		}
		return record, true, nil
	default:
		return record, false, err
	}
}

// Complete сохраняет результат обработки. Ошибка записи только логируется:
// ответ клиенту уже сформирован.
func (g *Guard) Complete(key string, body []byte, statusCode int, failed bool) {
	var err error
	if failed {
		err = g.repo.MarkFailed(key, body, statusCode)
	} else {
		err = g.repo.MarkDone(key, body, statusCode)
	}
	if err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent result")
	}
}

// HashRequest строит стабильный хэш из частей запроса.
func HashRequest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

