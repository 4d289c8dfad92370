package tier

import (
	"context"
	"errors"
	"slices"
	"time"

	qc "github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/genstore"
	"github.com/unkn0wn-root/querycache/internal/util"
	"github.com/unkn0wn-root/querycache/internal/wire"
	"github.com/unkn0wn-root/querycache/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// SetCostFunc prices a record for cost-aware providers.
type SetCostFunc func(key string, raw []byte, isBulk bool, members int) int64

// Options configure a Tier. Namespace, Provider and Codec are required.
type Options[V any] struct {
	Namespace string // e.g. "products"
	Provider  provider.Provider
	Codec     codec.Codec[V]

	GenStore       genstore.GenStore // nil => in-process store owned by the tier
	Logger         qc.Logger         // nil => qc.NopLogger
	DefaultTTL     time.Duration     // singles; 0 => 10m
	BulkTTL        time.Duration     // bulks; 0 => 10m
	MaxAge         time.Duration     // records older than this miss; 0 => no limit
	ComputeSetCost SetCostFunc       // nil => record length
	DisableBulk    bool
	Disabled       bool
	Now            func() time.Time
}

// Tier is safe for concurrent use.
type Tier[V any] struct {
	ns       string
	provider provider.Provider
	codec    codec.Codec[V]
	gen      genstore.GenStore
	ownGen   bool
	log      qc.Logger
	now      func() time.Time

	enabled    bool
	bulk       bool
	defaultTTL time.Duration
	bulkTTL    time.Duration
	maxAge     time.Duration
	cost       SetCostFunc
}

func New[V any](opts Options[V]) (*Tier[V], error) {
	switch {
	case opts.Namespace == "":
		return nil, errors.New("tier: namespace is required")
	case opts.Provider == nil:
		return nil, errors.New("tier: provider is required")
	case opts.Codec == nil:
		return nil, errors.New("tier: codec is required")
	}
	t := &Tier[V]{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		codec:      opts.Codec,
		gen:        opts.GenStore,
		log:        qc.NopLogger{},
		now:        opts.Now,
		enabled:    !opts.Disabled,
		bulk:       !opts.DisableBulk,
		defaultTTL: opts.DefaultTTL,
		bulkTTL:    opts.BulkTTL,
		maxAge:     opts.MaxAge,
		cost:       opts.ComputeSetCost,
	}
	if opts.Logger != nil {
		t.log = opts.Logger
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.defaultTTL == 0 {
		t.defaultTTL = defaultTTL
	}
	if t.bulkTTL == 0 {
		t.bulkTTL = defaultTTL
	}
	if t.cost == nil {
		t.cost = func(_ string, raw []byte, _ bool, _ int) int64 { return int64(len(raw)) }
	}
	if t.gen == nil {
		t.gen = genstore.NewLocal(genstore.LocalOptions{
			CleanupInterval: defaultSweep,
			Retention:       defaultGenRetention,
			Now:             t.now,
		})
		t.ownGen = true
	}
	return t, nil
}

func (t *Tier[V]) Enabled() bool { return t.enabled }

// Close releases the provider, and the generation store when the tier
// created it.
func (t *Tier[V]) Close(ctx context.Context) error {
	var genErr error
	if t.ownGen {
		genErr = t.gen.Close(ctx)
	}
	return errors.Join(genErr, t.provider.Close(ctx))
}

// Get returns the value under key if its record is intact, of the current
// generation and within MaxAge. Anything else is deleted and reported as a
// miss. Only provider errors are returned.
func (t *Tier[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !t.enabled {
		return zero, false, nil
	}
	sk := t.singleKey(key)
	raw, ok, err := t.provider.Get(ctx, sk)
	if err != nil || !ok {
		return zero, false, err
	}
	rec, err := wire.DecodeSingle(raw)
	if err != nil {
		t.heal(ctx, sk, "corrupt")
		return zero, false, nil
	}
	if rec.Gen != t.snapshotGen(ctx, sk) {
		t.heal(ctx, sk, "stale generation")
		return zero, false, nil
	}
	if t.tooOld(rec.StoredAt) {
		t.heal(ctx, sk, "max age")
		return zero, false, nil
	}
	v, err := t.codec.Decode(rec.Payload)
	if err != nil {
		t.heal(ctx, sk, "undecodable")
		return zero, false, nil
	}
	return v, true, nil
}

// SetWithGen writes value iff key's generation still equals observedGen.
// ttl 0 uses DefaultTTL.
func (t *Tier[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64, ttl time.Duration) error {
	if !t.enabled {
		return nil
	}
	sk := t.singleKey(key)
	if cur := t.snapshotGen(ctx, sk); cur != observedGen {
		t.log.Debug("tier write skipped: generation moved", qc.Fields{"key": key, "observed": observedGen, "current": cur})
		return nil
	}
	payload, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = t.defaultTTL
	}
	raw := wire.EncodeSingle(wire.Single{Gen: observedGen, StoredAt: t.now(), Payload: payload})
	ok, err := t.provider.Set(ctx, sk, raw, t.cost(sk, raw, false, 1), ttl)
	if err != nil {
		return err
	}
	if !ok {
		t.log.Debug("tier write dropped by provider", qc.Fields{"key": key})
	}
	return nil
}

// Invalidate retires key's current generation and deletes its record. It
// fails only when both steps fail.
func (t *Tier[V]) Invalidate(ctx context.Context, key string) error {
	if !t.enabled {
		return nil
	}
	sk := t.singleKey(key)
	gen, bumpErr := t.gen.Bump(ctx, sk)
	delErr := t.provider.Del(ctx, sk)
	switch {
	case bumpErr != nil && delErr != nil:
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	case bumpErr != nil:
		t.log.Warn("tier invalidate: gen bump failed", qc.Fields{"key": key, "err": bumpErr})
	case delErr != nil:
		t.log.Warn("tier invalidate: delete failed", qc.Fields{"key": key, "err": delErr})
	}
	t.log.Debug("tier invalidated", qc.Fields{"key": key, "gen": gen})
	return nil
}

// GetBulk looks up keys, first as one bulk record for the whole set and then
// one by one. The bulk record is used only if every requested member is in it
// with its current generation. missing lists the keys not found, in request
// order without duplicates.
func (t *Tier[V]) GetBulk(ctx context.Context, keys []string) (map[string]V, []string, error) {
	out := make(map[string]V, len(keys))
	uniq := uniqInOrder(keys)
	if !t.enabled {
		return out, uniq, nil
	}
	if len(uniq) == 0 {
		return out, nil, nil
	}

	if t.bulk {
		sorted := util.UniqSorted(keys)
		bk := t.bulkKey(sorted)
		if raw, ok, err := t.provider.Get(ctx, bk); err == nil && ok {
			if vals, gens, ok := t.decodeBulk(ctx, raw, sorted); ok {
				var missing []string
				for _, k := range uniq {
					v, ok := vals[k]
					if !ok {
						missing = append(missing, k)
						continue
					}
					out[k] = v
					_ = t.SetWithGen(ctx, k, v, gens[k], t.defaultTTL)
				}
				return out, missing, nil
			}
			t.heal(ctx, bk, "stale bulk")
		}
	}

	var missing []string
	for _, k := range uniq {
		v, ok, err := t.Get(ctx, k)
		if err != nil {
			return out, nil, err
		}
		if ok {
			out[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	return out, missing, nil
}

func (t *Tier[V]) decodeBulk(ctx context.Context, raw []byte, sorted []string) (map[string]V, map[string]uint64, bool) {
	rec, err := wire.DecodeBulk(raw)
	if err != nil || t.tooOld(rec.StoredAt) || !t.bulkValid(ctx, sorted, rec.Items) {
		return nil, nil, false
	}
	vals := make(map[string]V, len(rec.Items))
	gens := make(map[string]uint64, len(rec.Items))
	for _, it := range rec.Items {
		v, err := t.codec.Decode(it.Payload)
		if err != nil {
			continue
		}
		vals[it.Key] = v
		gens[it.Key] = it.Gen
	}
	return vals, gens, true
}

// bulkValid reports whether every requested key has a member of its current
// generation. Extra members are ignored.
func (t *Tier[V]) bulkValid(ctx context.Context, sorted []string, items []wire.BulkItem) bool {
	got := make(map[string]uint64, len(items))
	for _, it := range items {
		got[it.Key] = it.Gen
	}
	cur := t.SnapshotGens(ctx, sorted)
	for _, k := range sorted {
		g, ok := got[k]
		if !ok || g != cur[k] {
			return false
		}
	}
	return true
}

// SetBulkWithGens writes items as one bulk record plus one single per item.
// If any observedGens entry is missing or outdated only the singles are
// written, each under its own CAS check. ttl 0 uses BulkTTL.
func (t *Tier[V]) SetBulkWithGens(ctx context.Context, items map[string]V, observedGens map[string]uint64, ttl time.Duration) error {
	if !t.enabled || len(items) == 0 {
		return nil
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	if t.bulk && t.gensCurrent(ctx, keys, observedGens) {
		if err := t.setBulk(ctx, keys, items, observedGens, ttl); err != nil {
			return err
		}
	}
	for _, k := range keys {
		obs, ok := observedGens[k]
		if !ok {
			continue
		}
		if err := t.SetWithGen(ctx, k, items[k], obs, t.defaultTTL); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tier[V]) gensCurrent(ctx context.Context, keys []string, observed map[string]uint64) bool {
	cur := t.SnapshotGens(ctx, keys)
	for _, k := range keys {
		obs, ok := observed[k]
		if !ok || cur[k] != obs {
			t.log.Debug("tier bulk write skipped: generation moved", qc.Fields{"key": k})
			return false
		}
	}
	return true
}

func (t *Tier[V]) setBulk(ctx context.Context, sorted []string, items map[string]V, gens map[string]uint64, ttl time.Duration) error {
	rec := wire.Bulk{StoredAt: t.now(), Items: make([]wire.BulkItem, 0, len(sorted))}
	for _, k := range sorted {
		payload, err := t.codec.Encode(items[k])
		if err != nil {
			return err
		}
		rec.Items = append(rec.Items, wire.BulkItem{Key: k, Gen: gens[k], Payload: payload})
	}
	raw, err := wire.EncodeBulk(rec)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = t.bulkTTL
	}
	bk := t.bulkKey(sorted)
	ok, err := t.provider.Set(ctx, bk, raw, t.cost(bk, raw, true, len(sorted)), ttl)
	if err != nil {
		return err
	}
	if !ok {
		t.log.Debug("tier bulk write dropped by provider", qc.Fields{"bulkKey": bk})
	}
	return nil
}

// SnapshotGen returns key's current generation. Generation store errors
// read as 0: CAS writes then skip and reads self-heal.
func (t *Tier[V]) SnapshotGen(ctx context.Context, key string) uint64 {
	return t.snapshotGen(ctx, t.singleKey(key))
}

// SnapshotGens returns the current generation of every distinct key.
func (t *Tier[V]) SnapshotGens(ctx context.Context, keys []string) map[string]uint64 {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out
	}
	sks := make([]string, len(keys))
	for i, k := range keys {
		sks[i] = t.singleKey(k)
	}
	m, err := t.gen.SnapshotMany(ctx, sks)
	if err != nil {
		t.log.Warn("tier gen snapshot failed", qc.Fields{"keys": len(keys), "err": err})
		for _, k := range keys {
			out[k] = 0
		}
		return out
	}
	for i, k := range keys {
		out[k] = m[sks[i]]
	}
	return out
}

func (t *Tier[V]) snapshotGen(ctx context.Context, sk string) uint64 {
	g, err := t.gen.Snapshot(ctx, sk)
	if err != nil {
		t.log.Warn("tier gen snapshot failed", qc.Fields{"key": sk, "err": err})
		return 0
	}
	return g
}

func (t *Tier[V]) tooOld(storedAt time.Time) bool {
	return t.maxAge > 0 && t.now().Sub(storedAt) > t.maxAge
}

func (t *Tier[V]) heal(ctx context.Context, storageKey, reason string) {
	_ = t.provider.Del(ctx, storageKey)
	t.log.Debug("tier record dropped", qc.Fields{"key": storageKey, "reason": reason})
}

func (t *Tier[V]) singleKey(key string) string { return "single:" + t.ns + ":" + key }

func (t *Tier[V]) bulkKey(sorted []string) string {
	return util.BulkKey("bulk:"+t.ns, sorted)
}

func uniqInOrder(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
