package storage

import "context"

// Store — быстрое вспомогательное хранилище: лимит попыток проверки пароля
// и push-подписки получателей. Реализации: redisstore.Client, memstore.Client (для -dev без Redis).
type Store interface {
	// CheckValidateLimit учитывает попытку проверки пароля для ключа (обычно IP)
	// и сообщает, не превышен ли лимит за окно.
	CheckValidateLimit(ctx context.Context, key string) (allowed bool, err error)

	// AddPushSubscription сохраняет подписку браузера (JSON) для сессии; ключ — endpoint подписки.
	AddPushSubscription(ctx context.Context, sessionID, endpoint string, sub []byte) error
	// ListPushSubscriptions возвращает все подписки сессии.
	ListPushSubscriptions(ctx context.Context, sessionID string) ([][]byte, error)
	// RemovePushSubscription удаляет подписку по endpoint (отписка или протухший endpoint).
	RemovePushSubscription(ctx context.Context, sessionID, endpoint string) error

	Close() error
}
