package gemini

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/k-r-g/gemini/codec"
)

// fakeGroup is a minimal in-memory EntityGroup/CacheGroup used by tests.
// Each entity is a flat string->string field map; fieldOrder records
// insertion order so WriteMap round-trips deterministically.
type fakeGroup struct {
	number     int
	distribute bool
	cached     bool

	mu         sync.Mutex
	fieldOrder []string
	objects    map[int64]map[string]string
	order      []int64
}

func newFakeGroup(number int, distribute, cached bool, fieldOrder ...string) *fakeGroup {
	return &fakeGroup{
		number:     number,
		distribute: distribute,
		cached:     cached,
		fieldOrder: fieldOrder,
		objects:    make(map[int64]map[string]string),
	}
}

func (g *fakeGroup) GroupNumber() int  { return g.number }
func (g *fakeGroup) Distribute() bool  { return g.distribute }
func (g *fakeGroup) Cached() bool      { return g.cached }

// put is the test-side mutator standing in for whatever the real store
// does when an application mutates an entity; it does not itself notify
// the Translator (tests call the Translator hook explicitly, same as the
// real store's listener dispatch would).
func (g *fakeGroup) put(id int64, fields map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.objects[id]; !exists {
		g.order = append(g.order, id)
	}
	g.objects[id] = fields
}

func (g *fakeGroup) delete(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

func (g *fakeGroup) WriteMap(objectID int64) (OrderedProperties, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fields, ok := g.objects[objectID]
	if !ok {
		return nil, false
	}
	return encodeFields(g.fieldOrder, fields), true
}

func (g *fakeGroup) Get(objectID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.objects[objectID]
	return ok
}

func (g *fakeGroup) NewObjectFromMap(ctx context.Context, objectID int64, props OrderedProperties) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.objects[objectID] = decodeFields(props)
	g.order = append(g.order, objectID)
	return nil
}

func (g *fakeGroup) UpdateObjectFromMap(ctx context.Context, objectID int64, props OrderedProperties) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.objects[objectID]; !ok {
		return fmt.Errorf("fakeGroup: object %d not present", objectID)
	}
	g.objects[objectID] = decodeFields(props)
	return nil
}

func (g *fakeGroup) RemoveFromCache(ctx context.Context, objectID int64) error {
	g.delete(objectID)
	return nil
}

func (g *fakeGroup) fields(objectID int64) (map[string]string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.objects[objectID]
	return f, ok
}

func encodeFields(order []string, fields map[string]string) OrderedProperties {
	names := order
	if len(names) == 0 {
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	props := make(OrderedProperties, 0, len(names))
	for _, name := range names {
		v, ok := fields[name]
		if !ok {
			continue
		}
		props = append(props, Property{Name: name, Encoding: "string", Value: []byte(v)})
	}
	return props
}

// decodeFields dispatches each property through the codec registry
// instead of assuming "string" encoding, so a test store exercises the
// same receive-side decode path a real entity store would.
func decodeFields(props OrderedProperties) map[string]string {
	fields := make(map[string]string, len(props))
	for _, p := range props {
		switch p.Encoding {
		case "binary":
			var ts time.Time
			if _, err := props.DecodeProperty(p.Name, &ts); err != nil {
				panic(fmt.Sprintf("fakeGroup: decoding binary property %q: %v", p.Name, err))
			}
			fields[p.Name] = ts.UTC().Format(time.RFC3339)
		default:
			c, ok := codec.Get(p.Encoding)
			if !ok {
				fields[p.Name] = string(p.Value)
				continue
			}
			var s string
			if err := c.Unmarshal(p.Value, &s); err != nil {
				fields[p.Name] = string(p.Value)
				continue
			}
			fields[p.Name] = s
		}
	}
	return fields
}

// fakeRelation is a minimal in-memory CachedRelation.
type fakeRelation struct {
	id int64

	mu        sync.Mutex
	pairs     map[RelationPair]struct{}
	lastOpts  MutationOptions
	callCount int
}

func newFakeRelation(id int64) *fakeRelation {
	return &fakeRelation{id: id, pairs: make(map[RelationPair]struct{})}
}

func (r *fakeRelation) record(opts MutationOptions) {
	r.callCount++
	r.lastOpts = opts
}

func (r *fakeRelation) Add(ctx context.Context, left, right int64, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	r.pairs[RelationPair{Left: left, Right: right}] = struct{}{}
	return nil
}

func (r *fakeRelation) AddAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	for p := range pairs {
		r.pairs[p] = struct{}{}
	}
	return nil
}

func (r *fakeRelation) Clear(ctx context.Context, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	r.pairs = make(map[RelationPair]struct{})
	return nil
}

func (r *fakeRelation) Remove(ctx context.Context, left, right int64, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	delete(r.pairs, RelationPair{Left: left, Right: right})
	return nil
}

func (r *fakeRelation) RemoveAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	for p := range pairs {
		delete(r.pairs, p)
	}
	return nil
}

func (r *fakeRelation) RemoveLeftValue(ctx context.Context, left int64, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	for p := range r.pairs {
		if p.Left == left {
			delete(r.pairs, p)
		}
	}
	return nil
}

func (r *fakeRelation) RemoveRightValue(ctx context.Context, right int64, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	for p := range r.pairs {
		if p.Right == right {
			delete(r.pairs, p)
		}
	}
	return nil
}

func (r *fakeRelation) ReplaceAll(ctx context.Context, pairs RelationPairSet, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	r.pairs = make(map[RelationPair]struct{}, len(pairs))
	for p := range pairs {
		r.pairs[p] = struct{}{}
	}
	return nil
}

func (r *fakeRelation) Reset(ctx context.Context, opts MutationOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(opts)
	r.pairs = make(map[RelationPair]struct{})
	return nil
}

func (r *fakeRelation) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs)
}

func (r *fakeRelation) has(left, right int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pairs[RelationPair{Left: left, Right: right}]
	return ok
}

// fakeStore is a minimal in-memory EntityStore used by tests.
type fakeStore struct {
	mu          sync.Mutex
	initialized bool
	groups      map[int]EntityGroup
	relations   map[int64]CachedRelation

	resetCalls      int
	groupResetCalls []int
	expiredCalls    []int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		initialized: true,
		groups:      make(map[int]EntityGroup),
		relations:   make(map[int64]CachedRelation),
	}
}

func (s *fakeStore) addGroup(g EntityGroup) { s.groups[g.GroupNumber()] = g }

func (s *fakeStore) addRelation(r CachedRelation, id int64) { s.relations[id] = r }

func (s *fakeStore) IsInitialized() bool { return s.initialized }

func (s *fakeStore) GroupByNumber(groupNumber int) (EntityGroup, bool) {
	g, ok := s.groups[groupNumber]
	return g, ok
}

func (s *fakeStore) Reset(ctx context.Context, loadEverything, distribute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCalls++
	return nil
}

func (s *fakeStore) ResetGroup(ctx context.Context, group EntityGroup, loadEverything, distribute bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupResetCalls = append(s.groupResetCalls, group.GroupNumber())
	return nil
}

func (s *fakeStore) CachedRelation(relationID int64) (CachedRelation, bool) {
	r, ok := s.relations[relationID]
	return r, ok
}

func (s *fakeStore) NotifyObjectExpired(ctx context.Context, group EntityGroup, objectID int64, distribute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiredCalls = append(s.expiredCalls, objectID)
}
