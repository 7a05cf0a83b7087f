package sse

import (
	"context"
	"sync"

	"qr-entry/internal/models"
)

const clientBuffer = 16

// CheckinEventEmitter fans successful check-ins out to live feed subscribers, keyed by event id.
type CheckinEventEmitter struct {
	mu      sync.RWMutex
	clients map[int64][]chan models.CheckinResult
}

func NewCheckinEventEmitter() *CheckinEventEmitter {
	return &CheckinEventEmitter{
		clients: make(map[int64][]chan models.CheckinResult),
	}
}

// Subscribe registers a client for eventID. The channel is closed once ctx is done.
func (e *CheckinEventEmitter) Subscribe(ctx context.Context, eventID int64) <-chan models.CheckinResult {
	ch := make(chan models.CheckinResult, clientBuffer)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(eventID, ch)
	}()

	return ch
}

// EmitCheckin never blocks: a client whose buffer is full misses this result.
func (e *CheckinEventEmitter) EmitCheckin(eventID int64, result models.CheckinResult) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[eventID] {
		select {
		case ch <- result:
		default:
		}
	}
}

func (e *CheckinEventEmitter) remove(eventID int64, ch chan models.CheckinResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, c := range clients {
		if c == ch {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

func (e *CheckinEventEmitter) ClientCount(eventID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
