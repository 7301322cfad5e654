// Package session authenticates API callers with HS256 bearer tokens and
// tells interested components when a user signs out.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrSignedOut    = errors.New("session signed out")
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

type Event struct {
	Kind   EventKind
	UserID string
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager owns token validation and the sign-out state. Subscribers are
// called synchronously, outside the manager's lock.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
	revoked map[string]time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		subs:    map[int]func(Event){},
		revoked: map[string]time.Time{},
	}
}

// Issue signs a token for userID with the configured lifetime.
func (m *Manager) Issue(userID, email string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	m.notify(Event{Kind: SignedIn, UserID: userID})
	return signed, nil
}

// Authenticate validates a raw token and returns its user. Tokens issued
// at or before the second of the user's last sign-out are rejected.
func (m *Manager) Authenticate(raw string) (User, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	m.mu.Lock()
	revokedAt, ok := m.revoked[c.Subject]
	m.mu.Unlock()
	if ok && (c.IssuedAt == nil || !c.IssuedAt.Time.After(revokedAt)) {
		return User{}, ErrSignedOut
	}
	return User{ID: c.Subject, Email: c.Email}, nil
}

// Subscribe registers fn for session events and returns its unsubscribe func.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// SignOut invalidates every token issued to the user so far and notifies
// subscribers.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	m.revoked[userID] = m.now().Truncate(time.Second)
	m.mu.Unlock()
	m.notify(Event{Kind: SignedOut, UserID: userID})
}

func (m *Manager) notify(ev Event) {
	m.mu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type ctxKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" || !strings.HasPrefix(h, "Bearer ") {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), nil
}

// Middleware rejects requests without a valid bearer token and puts the
// user into the request context.
func (m *Manager) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			u, err := m.Authenticate(raw)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
