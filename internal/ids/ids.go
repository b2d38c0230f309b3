// Package ids allocates collision-free identifiers and account numbers.
package ids

import (
	"bank_backoffice/internal/domain"
	"math/big"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Kind describes an entity set identifiers are drawn for
type Kind struct {
	Name   string // Key for per-kind serialization
	Model  any    // gorm model holding the identifier column
	Column string // Column that must stay unique
	Prefix string // Prefix of generated ids
}

var (
	UserID        = Kind{Name: "user", Model: &domain.User{}, Column: "id", Prefix: "U"}
	AccountID     = Kind{Name: "account", Model: &domain.Account{}, Column: "id", Prefix: "A"}
	TransactionID = Kind{Name: "transaction", Model: &domain.Transaction{}, Column: "id", Prefix: "T"}
	AccountNumber = Kind{Name: "account_number", Model: &domain.Account{}, Column: "account_number"}
)

const (
	suffixLen        = 8
	accountNumberLen = 9
	recentPerKind    = 1024
)

// Allocator hands out identifiers that are unique against storage and
// against values it issued recently that may not be committed yet.
type Allocator struct {
	mu     sync.Mutex
	kinds  map[string]*kindState
	newID  func(prefix string) string
	newNum func() string
}

type kindState struct {
	mu     sync.Mutex
	recent map[string]struct{}
	order  []string
}

// NewAllocator creates an Allocator backed by random uuids
func NewAllocator() *Allocator {
	return &Allocator{
		kinds:  make(map[string]*kindState),
		newID:  randomID,
		newNum: randomAccountNumber,
	}
}

// Allocate returns a new id for kind, re-sampling until it is unused.
// db may be a transaction handle.
func (a *Allocator) Allocate(db *gorm.DB, kind Kind) (string, error) {
	return a.allocate(db, kind, func() string { return a.newID(kind.Prefix) })
}

// AllocateAccountNumber returns a new 9-digit account number
func (a *Allocator) AllocateAccountNumber(db *gorm.DB) (string, error) {
	return a.allocate(db, AccountNumber, a.newNum)
}

func (a *Allocator) allocate(db *gorm.DB, kind Kind, gen func() string) (string, error) {
	state := a.state(kind.Name)
	state.mu.Lock()
	defer state.mu.Unlock()
	for {
		candidate := gen()
		if _, issued := state.recent[candidate]; issued {
			continue
		}
		var count int64
		if err := db.Model(kind.Model).Where(kind.Column+" = ?", candidate).Count(&count).Error; err != nil {
			return "", domain.Storage("failed to check identifier", err)
		}
		if count > 0 {
			continue
		}
		state.remember(candidate)
		return candidate, nil
	}
}

func (a *Allocator) state(name string) *kindState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.kinds[name]
	if !ok {
		s = &kindState{recent: make(map[string]struct{})}
		a.kinds[name] = s
	}
	return s
}

func (s *kindState) remember(v string) {
	if len(s.order) >= recentPerKind {
		delete(s.recent, s.order[0])
		s.order = s.order[1:]
	}
	s.recent[v] = struct{}{}
	s.order = append(s.order, v)
}

func randomID(prefix string) string {
	return prefix + strings.ToUpper(uuid.NewString()[:suffixLen])
}

// randomAccountNumber takes the leading digits of a uuid read as an integer
func randomAccountNumber() string {
	for {
		u := uuid.New()
		if digits := new(big.Int).SetBytes(u[:]).String(); len(digits) >= accountNumberLen {
			return digits[:accountNumberLen]
		}
	}
}
