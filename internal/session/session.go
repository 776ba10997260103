// Package session tracks which browsers have logged in and what each of them
// has asked the classifier during the session.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"brandguard/internal/model"
)

var ErrNotFound = errors.New("session not found")

// DefaultHistorySize bounds the per-session prediction history.
const DefaultHistorySize = 50

// Session is one authenticated browser.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is one prediction made during a session.
type Entry struct {
	Brand      string      `json:"brand"`
	Comment    string      `json:"comment"`
	Label      model.Label `json:"label"`
	Risk       string      `json:"risk"`
	Confidence *float64    `json:"confidence"`
	At         time.Time   `json:"at"`
}

// Store keeps sessions and their history. Delete of an unknown token is not an
// error. History is returned oldest first.
type Store interface {
	Create(ctx context.Context, username string) (Session, error)
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
	AppendHistory(ctx context.Context, token string, e Entry) error
	History(ctx context.Context, token string) ([]Entry, error)
	Close() error
}

// Options shared by every store. A zero TTL keeps sessions until logout.
type Options struct {
	TTL         time.Duration
	HistorySize int
}

func (o Options) historySize() int {
	if o.HistorySize <= 0 {
		return DefaultHistorySize
	}
	return o.HistorySize
}

func newToken() string {
	return uuid.NewString()
}
