// Package objectstore is the staging area pipeline stages use to hand text
// blobs to each other by well-known name.
package objectstore

import (
	"context"
	"errors"
	"sync"
)

// Well-known object names.
const (
	InitiativesCSV     = "initiatives_csv"
	InitiativesData    = "initiatives_data"
	ChatUpdates        = "chat_updates"
	UpdatedInitiatives = "updated_initiatives"
)

// WellKnown lists every name the pipeline writes, in stage order.
var WellKnown = []string{InitiativesCSV, InitiativesData, ChatUpdates, UpdatedInitiatives}

// ErrNotFound is returned by Get for a name that was never staged or was deleted.
var ErrNotFound = errors.New("object not found")

// Store holds exactly one current value per name.
type Store interface {
	Put(ctx context.Context, name, text string) error
	Get(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]string)}
}

func (m *Memory) Put(ctx context.Context, name, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[name] = text
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.objects[name]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, name)
	m.mu.Unlock()
	return nil
}
