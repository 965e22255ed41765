// Package push — Web Push уведомления устройствам сессии напрямую (VAPID).
// Подписки хранятся в storage.Store (Redis или память), ключ — id сессии.
package push

import (
	"context"
	"encoding/json"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sharepass/internal/logger"
	"github.com/sharepass/internal/middleware"
	"github.com/sharepass/internal/storage"
)

// Subscription — подписка из браузера (PushSubscription.toJSON()).
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// notification — тело пуша, которое разбирает service worker.
type notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sender отправляет уведомления на все подписки сессии.
type Sender struct {
	store      storage.Store
	publicKey  string
	privateKey string
	subscriber string
}

// NewSender создаёт отправителя. Пустые ключи — пуши отключены (Notify no-op).
func NewSender(store storage.Store, publicKey, privateKey, subscriber string) *Sender {
	if subscriber == "" {
		subscriber = "mailto:admin@sharepass.local"
	}
	return &Sender{store: store, publicKey: publicKey, privateKey: privateKey, subscriber: subscriber}
}

// Enabled — настроена ли пара VAPID-ключей.
func (s *Sender) Enabled() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

// Notify отправляет пуш всем подпискам сессии. Ошибки доставки логируются и не
// возвращаются: уведомления best-effort, основной канал — WebSocket.
func (s *Sender) Notify(ctx context.Context, sessionID, title, body string) {
	if !s.Enabled() {
		return
	}
	subs, err := s.store.ListPushSubscriptions(ctx, sessionID)
	if err != nil {
		logger.Errorf("push list subscriptions session=%s: %v", middleware.MaskSessionID(sessionID), err)
		return
	}
	if len(subs) == 0 {
		return
	}
	payload, err := json.Marshal(notification{Title: title, Body: body})
	if err != nil {
		logger.Errorf("push marshal payload: %v", err)
		return
	}
	for _, raw := range subs {
		var sub Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			logger.Errorf("push bad subscription session=%s: %v", middleware.MaskSessionID(sessionID), err)
			continue
		}
		s.send(ctx, sessionID, &sub, payload)
	}
}

func (s *Sender) send(ctx context.Context, sessionID string, sub *Subscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}
	resp, err := webpush.SendNotification(payload, wpSub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             int((24 * time.Hour).Seconds()),
	})
	if err != nil {
		logger.Errorf("push send session=%s: %v", middleware.MaskSessionID(sessionID), err)
		return
	}
	defer resp.Body.Close()
	// 404/410 — подписка протухла, убираем её из хранилища
	if resp.StatusCode == 404 || resp.StatusCode == 410 {
		if err := s.store.RemovePushSubscription(ctx, sessionID, sub.Endpoint); err != nil {
			logger.Errorf("push remove stale subscription session=%s: %v", middleware.MaskSessionID(sessionID), err)
		}
	}
}
