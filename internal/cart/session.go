package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/greenlot/backend-dispensary/internal/customer"
	"github.com/greenlot/backend-dispensary/internal/pricing"
)

// ErrNotFound indicates the checkout session could not be located or has
// expired.
var ErrNotFound = errors.New("session not found")

// Line is one product entry in a checkout session. UnitPrice and TaxBps are
// captured from the catalog when the line is created and stay fixed for the
// life of the session, so a catalog price change mid-checkout never moves a
// total the budtender already quoted.
type Line struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand,omitempty"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	MedicalOnly bool            `json:"medicalOnly"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   pricing.Money   `json:"unitPrice"`
	TaxBps      int             `json:"taxBps"`
}

// Session is one register checkout in progress. Lines keep insertion order;
// DiscountIDs keep application order.
type Session struct {
	ID          string
	Lines       []Line
	DiscountIDs []string
	Customer    *customer.Profile
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

func (s *Session) lineIndex(productID string) int {
	for i, ln := range s.Lines {
		if ln.ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Session) hasDiscount(id string) bool {
	for _, applied := range s.DiscountIDs {
		if applied == id {
			return true
		}
	}
	return false
}

func (s *Session) clone() Session {
	out := *s
	out.Lines = make([]Line, len(s.Lines))
	copy(out.Lines, s.Lines)
	out.DiscountIDs = make([]string, len(s.DiscountIDs))
	copy(out.DiscountIDs, s.DiscountIDs)
	return out
}

// Store keeps active checkout sessions in memory. Sessions are short-lived
// register state; settled carts move to the transaction record store.
type Store struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore builds a session store with the provided TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{TTL: ttl, sessions: make(map[string]*Session)}
}

func (st *Store) ttl() time.Duration {
	if st == nil || st.TTL <= 0 {
		return time.Hour
	}
	return st.TTL
}

func (st *Store) now() time.Time {
	if st != nil && st.Now != nil {
		return st.Now()
	}
	return time.Now()
}

// Create registers a new empty session and returns its snapshot.
func (st *Store) Create() Session {
	now := st.now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(st.ttl()),
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.sessions == nil {
		st.sessions = make(map[string]*Session)
	}
	st.sessions[sess.ID] = sess
	return sess.clone()
}

// Get returns a snapshot of the session. Expired sessions are dropped on
// access and reported as not found.
func (st *Store) Get(id string) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, err := st.lockedGet(id)
	if err != nil {
		return Session{}, err
	}
	return sess.clone(), nil
}

// Update mutates the session under the store lock and returns the resulting
// snapshot. A successful mutation also extends the session lifetime.
func (st *Store) Update(id string, fn func(*Session) error) (Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, err := st.lockedGet(id)
	if err != nil {
		return Session{}, err
	}
	if err := fn(sess); err != nil {
		return Session{}, err
	}
	now := st.now()
	sess.UpdatedAt = now
	sess.ExpiresAt = now.Add(st.ttl())
	return sess.clone(), nil
}

// Delete removes the session. Missing sessions are a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len reports the number of live sessions. Expired entries still count until
// they are touched.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) lockedGet(id string) (*Session, error) {
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if st.now().After(sess.ExpiresAt) {
		delete(st.sessions, id)
		return nil, ErrNotFound
	}
	return sess, nil
}
