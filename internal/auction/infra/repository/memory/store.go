package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cristianortiz/auctionHouse/internal/auction/domain"
	"github.com/cristianortiz/auctionHouse/internal/auction/infra/ledger"
	userdomain "github.com/cristianortiz/auctionHouse/internal/user/domain"
	"github.com/google/uuid"
)

// Store is an in-process implementation of every store the bidding core uses.
// Transactions are serialized and run against a private copy of the data that
// replaces the shared one only on commit.
type Store struct {
	txMu sync.Mutex   // one writer at a time
	mu   sync.RWMutex // guards st
	st   *state
}

type state struct {
	auctions map[uuid.UUID]*domain.Auction
	bids     map[uuid.UUID]*domain.Bid
	order    []uuid.UUID // bid ids by Seq
	users    map[uuid.UUID]*userdomain.User
	seq      int64
}

func NewStore() *Store {
	return &Store{st: &state{
		auctions: make(map[uuid.UUID]*domain.Auction),
		bids:     make(map[uuid.UUID]*domain.Bid),
		users:    make(map[uuid.UUID]*userdomain.User),
	}}
}

func (st *state) clone() *state {
	c := &state{
		auctions: make(map[uuid.UUID]*domain.Auction, len(st.auctions)),
		bids:     make(map[uuid.UUID]*domain.Bid, len(st.bids)),
		order:    append([]uuid.UUID(nil), st.order...),
		users:    make(map[uuid.UUID]*userdomain.User, len(st.users)),
		seq:      st.seq,
	}
	for id, a := range st.auctions {
		c.auctions[id] = a.Clone()
	}
	for id, b := range st.bids {
		c.bids[id] = b.Clone()
	}
	for id, u := range st.users {
		cu := *u
		c.users[id] = &cu
	}
	return c
}

// view binds the repositories either to a transaction's private state or to
// the shared one, in which case every call takes the store locks itself.
type view struct {
	store *Store
	tx    *state
}

func (v *view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.st)
}

func (v *view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

// WithinTx implements domain.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(ctx, s.bind(&view{store: s, tx: work})); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Repositories implements domain.TxManager.
func (s *Store) Repositories() domain.Repositories {
	return s.bind(&view{store: s})
}

func (s *Store) bind(v *view) domain.Repositories {
	return domain.Repositories{
		Auctions: &auctionRepo{v},
		Bids:     &bidRepo{v},
		Ledger:   ledger.NewUserLedger(&userRepo{v}),
	}
}

// Users returns the account store backed by this Store.
func (s *Store) Users() userdomain.UserRepository {
	return &userRepo{&view{store: s}}
}

// AddUser seeds an account and returns its id.
func (s *Store) AddUser(name string, balance int64) uuid.UUID {
	u := &userdomain.User{ID: uuid.New(), Name: name, Balance: balance, CreatedAt: time.Now()}
	if err := s.Users().Create(context.Background(), u); err != nil {
		panic(fmt.Sprintf("memory: add user: %v", err))
	}
	return u.ID
}

// Balance returns the committed balance of a user, zero when unknown.
func (s *Store) Balance(id uuid.UUID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.st.users[id]; ok {
		return u.Balance
	}
	return 0
}
