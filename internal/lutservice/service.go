package lutservice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/Abdullah1738/juno-luts/lut"
	"github.com/Abdullah1738/juno-luts/offchain/lutstore"
	"github.com/Abdullah1738/juno-luts/offchain/solana"
)

var ErrNotClosable = errors.New("lookup table is not closable")

const lockStripes = 64

type Config struct {
	// ProgramID owns the derived table addresses.
	ProgramID solana.Pubkey
	Cooldown  uint64
	// Grace is the number of slots after deactivation before Close is
	// accepted.
	Grace uint64
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// Service is the instruction layer over a Store. Calls touching the same
// table run one at a time; each loads the stored snapshot, applies one
// transition and stores the result only when the transition succeeds.
type Service struct {
	store     lutstore.Store
	slots     SlotSource
	registry  lut.Registry
	validator lut.Validator
	grace     uint64
	log       *zap.Logger

	locks [lockStripes]sync.Mutex
}

func New(store lutstore.Store, slots SlotSource, cfg Config, opts ...Option) *Service {
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = solana.AddressLookupTableProgramID
	}
	if cfg.Grace == 0 {
		cfg.Grace = lut.DefaultDeactivationGrace
	}
	s := &Service{
		store:     store,
		slots:     slots,
		registry:  lut.NewRegistry(cfg.ProgramID),
		validator: lut.NewValidator(cfg.Cooldown),
		grace:     cfg.Grace,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type requestIDKey struct{}

// WithRequestID tags ctx so the service logs under the caller's id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id carried by ctx, or a fresh one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return xid.New().String()
}

func (s *Service) lock(key solana.Pubkey) func() {
	mu := &s.locks[xxhash.Sum64(key[:])%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *Service) Slot(ctx context.Context) (uint64, error) {
	slot, err := s.slots.Slot(ctx)
	if err != nil {
		return 0, fmt.Errorf("read slot: %w", err)
	}
	return slot, nil
}

func (s *Service) ProgramID() solana.Pubkey { return s.registry.ProgramID }

func (s *Service) DeriveTableAddress(authority solana.Pubkey, seed uint64) (solana.Pubkey, uint8, error) {
	return lut.DeriveTableAddress(s.registry.ProgramID, authority, seed)
}

func (s *Service) load(ctx context.Context, key solana.Pubkey) (*lut.Table, error) {
	t, err := s.store.Get(ctx, key)
	if errors.Is(err, lutstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", lut.ErrAccountNotFound, key)
	}
	return t, err
}

func (s *Service) logResult(ctx context.Context, op string, key solana.Pubkey, slot uint64, t *lut.Table, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.Stringer("table", key),
		zap.Uint64("slot", slot),
		zap.String("request_id", RequestID(ctx)),
	}
	if err != nil {
		s.log.Warn("lookup table operation rejected", append(fields, zap.String("kind", lut.Kind(err)), zap.Error(err))...)
		return
	}
	if t != nil {
		fields = append(fields, zap.Int("len", t.Len()), zap.Stringer("state", t.State))
	}
	s.log.Info("lookup table operation applied", fields...)
}

type CreateParams struct {
	Authority solana.Pubkey
	Seed      uint64
	// Table is the claimed account address. When zero it is derived from
	// Authority and Seed.
	Table     solana.Pubkey
	Addresses []solana.Pubkey
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*lut.Table, error) {
	key := p.Table
	if key.IsZero() {
		derived, _, err := s.DeriveTableAddress(p.Authority, p.Seed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", lut.ErrDerivationMismatch, err)
		}
		key = derived
	}

	unlock := s.lock(key)
	defer unlock()

	// The slot is read under the table lock so serialized calls observe
	// it in order.
	slot, err := s.Slot(ctx)
	if err != nil {
		return nil, err
	}

	occupied := true
	if _, err := s.store.Get(ctx, key); errors.Is(err, lutstore.ErrNotFound) {
		occupied = false
	} else if err != nil {
		return nil, err
	}

	t, err := s.registry.Create(lut.CreateRequest{
		Table:     key,
		Authority: p.Authority,
		Seed:      p.Seed,
		Addresses: p.Addresses,
	}, occupied, slot)
	if err == nil {
		err = s.store.Put(ctx, t)
	}
	s.logResult(ctx, "create", key, slot, t, err)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// mutate runs one registry transition against the stored snapshot of key.
func (s *Service) mutate(ctx context.Context, op string, key solana.Pubkey, apply func(t *lut.Table, slot uint64) (*lut.Table, error)) (*lut.Table, error) {
	unlock := s.lock(key)
	defer unlock()

	slot, err := s.Slot(ctx)
	if err != nil {
		return nil, err
	}

	t, err := s.load(ctx, key)
	var next *lut.Table
	if err == nil {
		next, err = apply(t, slot)
	}
	if err == nil {
		err = s.store.Put(ctx, next)
	}
	s.logResult(ctx, op, key, slot, next, err)
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Service) Extend(ctx context.Context, key, caller solana.Pubkey, addrs []solana.Pubkey) (*lut.Table, error) {
	return s.mutate(ctx, "extend", key, func(t *lut.Table, slot uint64) (*lut.Table, error) {
		return s.registry.Extend(t, key, caller, addrs, slot)
	})
}

func (s *Service) Freeze(ctx context.Context, key, caller solana.Pubkey) (*lut.Table, error) {
	return s.mutate(ctx, "freeze", key, func(t *lut.Table, _ uint64) (*lut.Table, error) {
		return s.registry.Freeze(t, key, caller)
	})
}

func (s *Service) Deactivate(ctx context.Context, key, caller solana.Pubkey) (*lut.Table, error) {
	return s.mutate(ctx, "deactivate", key, func(t *lut.Table, slot uint64) (*lut.Table, error) {
		return s.registry.Deactivate(t, key, caller, slot)
	})
}

// Close removes a deactivated table once the grace period has passed.
func (s *Service) Close(ctx context.Context, key, caller solana.Pubkey) error {
	unlock := s.lock(key)
	defer unlock()

	slot, err := s.Slot(ctx)
	if err != nil {
		return err
	}

	t, err := s.load(ctx, key)
	switch {
	case err != nil:
	case t.Authority != caller:
		err = lut.ErrUnauthorized
	case !t.State.Deactivated():
		err = fmt.Errorf("%w: table is not deactivated", ErrNotClosable)
	case !lut.Closable(t, slot, s.grace):
		err = fmt.Errorf("%w: deactivated at slot %d, grace %d", ErrNotClosable, t.DeactivationSlot, s.grace)
	default:
		err = s.store.Delete(ctx, key)
	}
	s.logResult(ctx, "close", key, slot, nil, err)
	return err
}

func (s *Service) Get(ctx context.Context, key solana.Pubkey) (*lut.Table, error) {
	return s.load(ctx, key)
}

// List returns the stored tables, restricted to authority when it is
// non-zero.
func (s *Service) List(ctx context.Context, authority solana.Pubkey) ([]*lut.Table, error) {
	keys, err := s.store.List(ctx, authority)
	if err != nil {
		return nil, err
	}
	out := make([]*lut.Table, 0, len(keys))
	for _, k := range keys {
		t, err := s.store.Get(ctx, k)
		if errors.Is(err, lutstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Service) Resolve(ctx context.Context, key solana.Pubkey, index int) (solana.Pubkey, error) {
	slot, err := s.Slot(ctx)
	if err != nil {
		return solana.Pubkey{}, err
	}
	t, err := s.load(ctx, key)
	if err != nil {
		return solana.Pubkey{}, err
	}
	return s.validator.Resolve(t, index, slot)
}

type Readiness struct {
	Slot     uint64 `json:"slot"`
	Ready    bool   `json:"ready"`
	ReadyLen int    `json:"ready_len"`
	Len      int    `json:"len"`
	Closable bool   `json:"closable"`
}

func (s *Service) Readiness(ctx context.Context, key solana.Pubkey) (Readiness, error) {
	slot, err := s.Slot(ctx)
	if err != nil {
		return Readiness{}, err
	}
	t, err := s.load(ctx, key)
	if err != nil {
		return Readiness{}, err
	}
	return Readiness{
		Slot:     slot,
		Ready:    s.validator.IsReady(t, slot),
		ReadyLen: s.validator.ReadyLen(t, slot),
		Len:      t.Len(),
		Closable: lut.Closable(t, slot, s.grace),
	}, nil
}

// View returns the part of key usable at the current slot, ready to be
// passed to solana.CompileV0Message.
func (s *Service) View(ctx context.Context, key solana.Pubkey) (solana.LookupTable, error) {
	slot, err := s.Slot(ctx)
	if err != nil {
		return solana.LookupTable{}, err
	}
	t, err := s.load(ctx, key)
	if err != nil {
		return solana.LookupTable{}, err
	}
	return s.validator.View(t, slot), nil
}

type LoadedAddresses struct {
	Writable []solana.Pubkey `json:"writable"`
	Readonly []solana.Pubkey `json:"readonly"`
}

// LoadMessageAddresses resolves the table lookups of a v0 message in
// order. Any unusable index fails the whole message.
func (s *Service) LoadMessageAddresses(ctx context.Context, lookups []solana.MessageAddressTableLookup) (LoadedAddresses, error) {
	var out LoadedAddresses
	slot, err := s.Slot(ctx)
	if err != nil {
		return out, err
	}
	for _, l := range lookups {
		t, err := s.load(ctx, l.AccountKey)
		if err != nil {
			return LoadedAddresses{}, err
		}
		w, err := s.validator.ResolveIndexes(t, l.WritableIndexes, slot)
		if err != nil {
			return LoadedAddresses{}, fmt.Errorf("table %s: %w", l.AccountKey, err)
		}
		r, err := s.validator.ResolveIndexes(t, l.ReadonlyIndexes, slot)
		if err != nil {
			return LoadedAddresses{}, fmt.Errorf("table %s: %w", l.AccountKey, err)
		}
		out.Writable = append(out.Writable, w...)
		out.Readonly = append(out.Readonly, r...)
	}
	return out, nil
}
