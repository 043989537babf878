package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultTTL: сколько живёт ключ CreateOrder, если ttl не задан. После этого
// CleanupWorker удаляет запись, и повтор с тем же ключом создаёт новый заказ.
const DefaultTTL = 24 * time.Hour

// ErrInProgress возвращается, пока первый запрос с тем же ключом ещё обрабатывается.
var ErrInProgress = errors.New("request with the same idempotency key is already processing")

// Guard реализует протокол idempotency-key поверх domain.IdempotencyRepository:
// первый запрос регистрируется как processing, повтор получает сохранённый
// ответ, повтор с другим телом отклоняется.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	logger *log.Entry
	now    func() time.Time
}

// NewGuard создаёт guard. Нулевой ttl заменяется DefaultTTL.
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
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Begin регистрирует запрос. Если запрос с тем же ключом уже завершён,
// возвращает его запись для воспроизведения ответа (replay != nil).
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (replay *domain.IdempotencyRecord, err error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
	default:
		return nil, err
	}

	switch record.Status {
	case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
		return &record, nil
	case domain.IdempotencyStatusProcessing:
		return nil, ErrInProgress
	default:
		return nil, fmt.Errorf("unknown idempotency record status %q", record.Status)
	}
}

// Complete сохраняет успешный ответ.
func (g *Guard) Complete(ctx context.Context, key string, body []byte, code int) {
	if err := g.repo.MarkDone(ctx, key, body, code); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotent success response")
	}
}

// Fail сохраняет ответ с ошибкой, чтобы повтор получил ту же ошибку.
func (g *Guard) Fail(ctx context.Context, key string, body []byte, code int) {
	if err := g.repo.MarkFailed(ctx, key, body, code); err != nil {
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to store idempotency failure response")
	}
}

// RequestHash строит отпечаток запроса: метод плюс JSON тела. Поля структур
// сериализуются в фиксированном порядке, ключи map сортируются.
func RequestHash(method string, req any) (string, error) {
	if strings.TrimSpace(method) == "" {
		return "", fmt.Errorf("method is required")
	}
	if req == nil {
		return "", fmt.Errorf("request is nil")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	payload := make([]byte, 0, len(method)+1+len(data))
	payload = append(payload, method...)
	payload = append(payload, ':')
	payload = append(payload, data...)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
