// Package redis хранит ключи идемпотентности в Redis с нативным TTL.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/petshop/internal/domain"
)

const (
	keyPrefix  = "petshop:idempotency:"
	opTimeout  = 2 * time.Second
	defaultTTL = 24 * time.Hour
)

type storedRecord struct {
	RequestHash  string    `json:"request_hash"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	StatusCode   int       `json:"status_code"`
	Status       string    `json:"status"`
	TTLAt        time.Time `json:"ttl_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type idempotencyRepository struct {
	client *goredis.Client
	now    func() time.Time
}

// NewIdempotencyRepository создаёт реализацию IdempotencyRepository поверх Redis.
// Истечение ключей выполняет сам Redis, поэтому DeleteExpired ничего не делает.
func NewIdempotencyRepository(client *goredis.Client) domain.IdempotencyRepository {
	return &idempotencyRepository{
		client: client,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	ttl := ttlAt.Sub(now)
	if ttlAt.IsZero() || ttl <= 0 {
		ttl = defaultTTL
		ttlAt = now.Add(ttl)
	}

	record := storedRecord{
		RequestHash: requestHash,
		Status:      string(domain.IdempotencyStatusProcessing),
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	created, err := r.client.SetNX(ctx, redisKey(key), data, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !created {
		existing, getErr := r.Get(key)
		if getErr != nil {
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
		}
		if existing.RequestHash != requestHash {
			return existing, domain.ErrIdempotencyHashMismatch
		}
		return existing, domain.ErrIdempotencyKeyAlreadyExists
	}

	return toDomain(key, record), nil
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := r.load(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return toDomain(key, record), nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, statusCode int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, statusCode int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

// DeleteExpired всегда возвращает 0: ключи истекают по TTL Redis.
func (r *idempotencyRepository) DeleteExpired(time.Time, int) (int, error) {
	return 0, nil
}

func (r *idempotencyRepository) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := r.load(ctx, key)
	if err != nil {
		return err
	}
	record.Status = string(status)
	record.ResponseBody = append([]byte(nil), responseBody...)
	record.StatusCode = statusCode
	record.UpdatedAt = r.now()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	// XX: запись могла истечь между чтением и обновлением.
	err = r.client.SetArgs(ctx, redisKey(key), data, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) load(ctx context.Context, key string) (storedRecord, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return storedRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return storedRecord{}, fmt.Errorf("redis get failed: %w", err)
	}

	var record storedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return storedRecord{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	if !domain.IdempotencyStatus(record.Status).Valid() {
		return storedRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", record.Status, key)
	}
	return record, nil
}

func toDomain(key string, record storedRecord) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  record.RequestHash,
		ResponseBody: append([]byte(nil), record.ResponseBody...),
		StatusCode:   record.StatusCode,
		Status:       domain.IdempotencyStatus(record.Status),
		TTLAt:        record.TTLAt,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func redisKey(key string) string {
	return keyPrefix + key
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
