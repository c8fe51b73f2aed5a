package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"roast-tracker/internal/metrics"
	"roast-tracker/internal/model"
	"roast-tracker/internal/roast"
	"roast-tracker/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// NearTargetEvent is raised when a monitor snapshot lands within the
// configured distance of its session's target index.
type NearTargetEvent struct {
	OwnerID     string
	SessionID   string
	SessionName string
	RoastIndex  float64
	RoastLabel  roast.Label
	TargetIndex float64
	TargetLabel roast.Label
}

// Payload is the JSON body pushed to the browser.
type Payload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	SessionID string `json:"session_id"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan NearTargetEvent
	store   store.Store
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Metrics
}

// NewWorkerPool creates a new worker pool with a queue of queueSize events.
func NewWorkerPool(size, queueSize int, s store.Store, webpushOptions *webpush.Options, m *metrics.Metrics) *WorkerPool {
	if queueSize < size {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan NearTargetEvent, queueSize),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		metrics: m,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case ev := <-wp.jobs:
			log.Printf("Worker %d processing near-target event for session %s", id, ev.SessionID)
			wp.notifyOwner(ctx, ev)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues ev without blocking. It reports false when the queue is
// full and the event was dropped.
func (wp *WorkerPool) Dispatch(ev NearTargetEvent) bool {
	select {
	case wp.jobs <- ev:
		return true
	default:
		log.Printf("Notification queue full; dropping near-target event for session %s", ev.SessionID)
		wp.metrics.Notification("dropped")
		return false
	}
}

// notifyOwner sends ev to every subscription of the session owner, provided
// the owner has notifications enabled.
func (wp *WorkerPool) notifyOwner(ctx context.Context, ev NearTargetEvent) {
	profile, err := wp.store.GetUserProfile(ctx, ev.OwnerID)
	if err != nil {
		log.Printf("Error fetching profile %s: %v", ev.OwnerID, err)
		return
	}
	if !profile.Preferences.Notifications {
		return
	}

	subscriptions, err := wp.store.ListPushSubscriptions(ctx, ev.OwnerID)
	if err != nil {
		log.Printf("Error fetching subscriptions for %s: %v", ev.OwnerID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(buildPayload(ev, profile.Preferences.Language))
	if err != nil {
		log.Printf("Error encoding payload for session %s: %v", ev.SessionID, err)
		return
	}

	log.Printf("Sending %d notifications for session %s", len(subscriptions), ev.SessionID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildPayload(ev NearTargetEvent, language string) Payload {
	if language == "en" {
		return Payload{
			Title:     fmt.Sprintf("%s is nearly done", ev.SessionName),
			Body:      fmt.Sprintf("Roast index %.0f (%s), target %.0f (%s).", ev.RoastIndex, ev.RoastLabel.Slug(), ev.TargetIndex, ev.TargetLabel.Slug()),
			SessionID: ev.SessionID,
		}
	}
	return Payload{
		Title:     fmt.Sprintf("%s 即将达到目标烘焙度", ev.SessionName),
		Body:      fmt.Sprintf("当前烘焙指数 %.0f（%s），目标 %.0f（%s）。", ev.RoastIndex, ev.RoastLabel, ev.TargetIndex, ev.TargetLabel),
		SessionID: ev.SessionID,
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		wp.metrics.Notification("error")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		wp.metrics.Notification("expired")
		if err := wp.store.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return
	}
	wp.metrics.Notification("sent")
}
