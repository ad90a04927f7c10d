package tokenomics

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
)

type memoryState struct {
	tiers         map[uint]models.SaleTier
	purchases     map[uint]models.PurchasePosition
	users         map[string]models.UserPurchase
	vestingClaims map[uint]models.VestingClaim
	pools         map[uint]models.StakingPool
	stakes        map[string]models.UserStakePosition
	rewardClaims  map[uint]models.StakingRewardClaim
	penalties     map[uint]models.PenaltyRecord
	beneficiaries map[uint]models.SchoolBeneficiary
	selections    map[string]models.BeneficiarySelection
	credits       map[uint]models.BeneficiaryCredit
}

func newMemoryState() *memoryState {
	return &memoryState{
		tiers:         make(map[uint]models.SaleTier),
		purchases:     make(map[uint]models.PurchasePosition),
		users:         make(map[string]models.UserPurchase),
		vestingClaims: make(map[uint]models.VestingClaim),
		pools:         make(map[uint]models.StakingPool),
		stakes:        make(map[string]models.UserStakePosition),
		rewardClaims:  make(map[uint]models.StakingRewardClaim),
		penalties:     make(map[uint]models.PenaltyRecord),
		beneficiaries: make(map[uint]models.SchoolBeneficiary),
		selections:    make(map[string]models.BeneficiarySelection),
		credits:       make(map[uint]models.BeneficiaryCredit),
	}
}

func (s *memoryState) apply(o *memoryState) {
	copyInto(s.tiers, o.tiers)
	copyInto(s.purchases, o.purchases)
	copyInto(s.users, o.users)
	copyInto(s.vestingClaims, o.vestingClaims)
	copyInto(s.pools, o.pools)
	copyInto(s.stakes, o.stakes)
	copyInto(s.rewardClaims, o.rewardClaims)
	copyInto(s.penalties, o.penalties)
	copyInto(s.beneficiaries, o.beneficiaries)
	copyInto(s.selections, o.selections)
	copyInto(s.credits, o.credits)
}

func copyInto[K comparable, V any](dst, src map[K]V) {
	for k, v := range src {
		dst[k] = v
	}
}

func lookup[K comparable, V any](base, pending map[K]V, key K) (V, bool) {
	if pending != nil {
		if v, ok := pending[key]; ok {
			return v, true
		}
	}
	v, ok := base[key]
	return v, ok
}

func collect[K comparable, V any](base, pending map[K]V, keep func(V) bool) []V {
	out := make([]V, 0)
	for k, v := range base {
		if pending != nil {
			if _, shadowed := pending[k]; shadowed {
				continue
			}
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	for _, v := range pending {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func cloneUser(u models.UserPurchase) models.UserPurchase {
	u.TierAmounts = append([]models.UserTierAmount(nil), u.TierAmounts...)
	return u
}

// keyedLocker hands out one mutex per lock key
type keyedLocker struct {
	mu    sync.Mutex
	locks map[LockKey]*sync.Mutex
}

func (k *keyedLocker) get(key LockKey) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	return l
}

// MemoryRepository is an in-process Repository. Atomically buffers writes and
// applies them in one step when the callback succeeds.
type MemoryRepository struct {
	*memoryTx

	mu    sync.RWMutex
	state *memoryState
	seq   uint
	locks *keyedLocker
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{
		state: newMemoryState(),
		locks: &keyedLocker{locks: make(map[LockKey]*sync.Mutex)},
	}
	r.memoryTx = &memoryTx{repo: r}
	return r
}

// Atomically implements Repository
func (r *MemoryRepository) Atomically(ctx context.Context, keys []LockKey, fn func(ctx context.Context, repo Repository) error) error {
	ordered := LockOrder(keys)
	for _, key := range ordered {
		r.locks.get(key).Lock()
	}
	defer func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			r.locks.get(ordered[i]).Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{repo: r, pending: newMemoryState()}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	r.state.apply(tx.pending)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) nextID() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq
}

// memoryTx reads through pending writes to the committed state. With a nil
// pending set it writes straight to the committed state.
type memoryTx struct {
	repo    *MemoryRepository
	pending *memoryState
}

// Atomically inside a transaction runs fn in the same transaction; the caller
// already holds its locks.
func (tx *memoryTx) Atomically(ctx context.Context, keys []LockKey, fn func(ctx context.Context, repo Repository) error) error {
	if tx.pending == nil {
		return tx.repo.Atomically(ctx, keys, fn)
	}
	return fn(ctx, tx)
}

// write stores a record either in the pending set or, outside a transaction,
// directly in the committed state
func (tx *memoryTx) write(fn func(s *memoryState)) {
	if tx.pending != nil {
		fn(tx.pending)
		return
	}
	tx.repo.mu.Lock()
	fn(tx.repo.state)
	tx.repo.mu.Unlock()
}

func (tx *memoryTx) read(fn func(base, pending *memoryState)) {
	tx.repo.mu.RLock()
	defer tx.repo.mu.RUnlock()
	fn(tx.repo.state, tx.pending)
}

func pendingMap[K comparable, V any](pending *memoryState, pick func(*memoryState) map[K]V) map[K]V {
	if pending == nil {
		return nil
	}
	return pick(pending)
}

func (tx *memoryTx) GetTier(ctx context.Context, id uint) (*models.SaleTier, error) {
	var (
		tier models.SaleTier
		ok   bool
	)
	tx.read(func(base, pending *memoryState) {
		tier, ok = lookup(base.tiers, pendingMap(pending, func(s *memoryState) map[uint]models.SaleTier { return s.tiers }), id)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &tier, nil
}

func (tx *memoryTx) ListTiers(ctx context.Context) ([]models.SaleTier, error) {
	var tiers []models.SaleTier
	tx.read(func(base, pending *memoryState) {
		tiers = collect(base.tiers, pendingMap(pending, func(s *memoryState) map[uint]models.SaleTier { return s.tiers }), nil)
	})
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].ID < tiers[j].ID })
	return tiers, nil
}

func (tx *memoryTx) SaveTier(ctx context.Context, tier *models.SaleTier) error {
	if tier.ID == 0 {
		tier.ID = tx.repo.nextID()
	}
	t := *tier
	tx.write(func(s *memoryState) { s.tiers[t.ID] = t })
	return nil
}

func (tx *memoryTx) AddPurchase(ctx context.Context, purchase *models.PurchasePosition) error {
	purchase.ID = tx.repo.nextID()
	return tx.SavePurchase(ctx, purchase)
}

func (tx *memoryTx) SavePurchase(ctx context.Context, purchase *models.PurchasePosition) error {
	p := *purchase
	tx.write(func(s *memoryState) { s.purchases[p.ID] = p })
	return nil
}

func (tx *memoryTx) listPurchases(keep func(models.PurchasePosition) bool) []models.PurchasePosition {
	var out []models.PurchasePosition
	tx.read(func(base, pending *memoryState) {
		out = collect(base.purchases, pendingMap(pending, func(s *memoryState) map[uint]models.PurchasePosition { return s.purchases }), keep)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *memoryTx) ListPurchases(ctx context.Context, wallet string) ([]models.PurchasePosition, error) {
	return tx.listPurchases(func(p models.PurchasePosition) bool { return p.WalletAddress == wallet }), nil
}

func (tx *memoryTx) ListPurchasesByTier(ctx context.Context, tierID uint) ([]models.PurchasePosition, error) {
	return tx.listPurchases(func(p models.PurchasePosition) bool { return p.TierID == tierID }), nil
}

func (tx *memoryTx) GetUserPurchase(ctx context.Context, wallet string) (*models.UserPurchase, error) {
	var (
		user models.UserPurchase
		ok   bool
	)
	tx.read(func(base, pending *memoryState) {
		user, ok = lookup(base.users, pendingMap(pending, func(s *memoryState) map[string]models.UserPurchase { return s.users }), wallet)
	})
	if !ok {
		return nil, ErrNotFound
	}
	user = cloneUser(user)
	return &user, nil
}

func (tx *memoryTx) ListUserPurchases(ctx context.Context) ([]models.UserPurchase, error) {
	var users []models.UserPurchase
	tx.read(func(base, pending *memoryState) {
		users = collect(base.users, pendingMap(pending, func(s *memoryState) map[string]models.UserPurchase { return s.users }), nil)
	})
	for i := range users {
		users[i] = cloneUser(users[i])
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Address < users[j].Address })
	return users, nil
}

func (tx *memoryTx) SaveUserPurchase(ctx context.Context, user *models.UserPurchase) error {
	if user.ID == 0 {
		user.ID = tx.repo.nextID()
	}
	u := cloneUser(*user)
	tx.write(func(s *memoryState) { s.users[u.Address] = u })
	return nil
}

func (tx *memoryTx) AddVestingClaim(ctx context.Context, claim *models.VestingClaim) error {
	claim.ID = tx.repo.nextID()
	c := *claim
	tx.write(func(s *memoryState) { s.vestingClaims[c.ID] = c })
	return nil
}

func (tx *memoryTx) GetPool(ctx context.Context, id uint) (*models.StakingPool, error) {
	var (
		pool models.StakingPool
		ok   bool
	)
	tx.read(func(base, pending *memoryState) {
		pool, ok = lookup(base.pools, pendingMap(pending, func(s *memoryState) map[uint]models.StakingPool { return s.pools }), id)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &pool, nil
}

func (tx *memoryTx) ListPools(ctx context.Context) ([]models.StakingPool, error) {
	var pools []models.StakingPool
	tx.read(func(base, pending *memoryState) {
		pools = collect(base.pools, pendingMap(pending, func(s *memoryState) map[uint]models.StakingPool { return s.pools }), nil)
	})
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func (tx *memoryTx) SavePool(ctx context.Context, pool *models.StakingPool) error {
	if pool.ID == 0 {
		pool.ID = tx.repo.nextID()
	}
	p := *pool
	tx.write(func(s *memoryState) { s.pools[p.ID] = p })
	return nil
}

func (tx *memoryTx) GetStake(ctx context.Context, stakeID string) (*models.UserStakePosition, error) {
	var (
		stake models.UserStakePosition
		ok    bool
	)
	tx.read(func(base, pending *memoryState) {
		stake, ok = lookup(base.stakes, pendingMap(pending, func(s *memoryState) map[string]models.UserStakePosition { return s.stakes }), stakeID)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &stake, nil
}

func (tx *memoryTx) listStakes(keep func(models.UserStakePosition) bool) []models.UserStakePosition {
	var out []models.UserStakePosition
	tx.read(func(base, pending *memoryState) {
		out = collect(base.stakes, pendingMap(pending, func(s *memoryState) map[string]models.UserStakePosition { return s.stakes }), keep)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StakeDate.Equal(out[j].StakeDate) {
			return out[i].StakeID < out[j].StakeID
		}
		return out[i].StakeDate.Before(out[j].StakeDate)
	})
	return out
}

func (tx *memoryTx) ListStakes(ctx context.Context, wallet string) ([]models.UserStakePosition, error) {
	return tx.listStakes(func(s models.UserStakePosition) bool { return s.WalletAddress == wallet }), nil
}

func (tx *memoryTx) ListStakesByStatus(ctx context.Context, status string) ([]models.UserStakePosition, error) {
	return tx.listStakes(func(s models.UserStakePosition) bool { return s.Status == status }), nil
}

func (tx *memoryTx) SaveStake(ctx context.Context, stake *models.UserStakePosition) error {
	s := *stake
	tx.write(func(st *memoryState) { st.stakes[s.StakeID] = s })
	return nil
}

func (tx *memoryTx) AddRewardClaim(ctx context.Context, claim *models.StakingRewardClaim) error {
	claim.ID = tx.repo.nextID()
	c := *claim
	tx.write(func(s *memoryState) { s.rewardClaims[c.ID] = c })
	return nil
}

func (tx *memoryTx) AddPenalty(ctx context.Context, penalty *models.PenaltyRecord) error {
	penalty.ID = tx.repo.nextID()
	p := *penalty
	tx.write(func(s *memoryState) { s.penalties[p.ID] = p })
	return nil
}

func (tx *memoryTx) GetBeneficiary(ctx context.Context, id uint) (*models.SchoolBeneficiary, error) {
	var (
		b  models.SchoolBeneficiary
		ok bool
	)
	tx.read(func(base, pending *memoryState) {
		b, ok = lookup(base.beneficiaries, pendingMap(pending, func(s *memoryState) map[uint]models.SchoolBeneficiary { return s.beneficiaries }), id)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (tx *memoryTx) ListBeneficiaries(ctx context.Context) ([]models.SchoolBeneficiary, error) {
	var out []models.SchoolBeneficiary
	tx.read(func(base, pending *memoryState) {
		out = collect(base.beneficiaries, pendingMap(pending, func(s *memoryState) map[uint]models.SchoolBeneficiary { return s.beneficiaries }), nil)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *memoryTx) SaveBeneficiary(ctx context.Context, beneficiary *models.SchoolBeneficiary) error {
	if beneficiary.ID == 0 {
		beneficiary.ID = tx.repo.nextID()
	}
	b := *beneficiary
	tx.write(func(s *memoryState) { s.beneficiaries[b.ID] = b })
	return nil
}

func (tx *memoryTx) GetBeneficiarySelection(ctx context.Context, wallet string) (*models.BeneficiarySelection, error) {
	var (
		sel models.BeneficiarySelection
		ok  bool
	)
	tx.read(func(base, pending *memoryState) {
		sel, ok = lookup(base.selections, pendingMap(pending, func(s *memoryState) map[string]models.BeneficiarySelection { return s.selections }), wallet)
	})
	if !ok {
		return nil, ErrNotFound
	}
	return &sel, nil
}

func (tx *memoryTx) SaveBeneficiarySelection(ctx context.Context, selection *models.BeneficiarySelection) error {
	sel := *selection
	tx.write(func(s *memoryState) { s.selections[sel.WalletAddress] = sel })
	return nil
}

func (tx *memoryTx) AddBeneficiaryCredit(ctx context.Context, credit *models.BeneficiaryCredit) error {
	credit.ID = tx.repo.nextID()
	c := *credit
	tx.write(func(s *memoryState) { s.credits[c.ID] = c })
	return nil
}

func (tx *memoryTx) BeneficiaryTotal(ctx context.Context, beneficiaryID uint) (decimal.Decimal, error) {
	total := decimal.Zero
	tx.read(func(base, pending *memoryState) {
		credits := collect(base.credits, pendingMap(pending, func(s *memoryState) map[uint]models.BeneficiaryCredit { return s.credits }), func(c models.BeneficiaryCredit) bool {
			return c.BeneficiaryID == beneficiaryID
		})
		for _, c := range credits {
			total = total.Add(c.Amount)
		}
	})
	return total, nil
}
