package querycache

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	ordersKey = NewKey("orders")
	order3Key = NewKey("order", 3)
)

func updateStatusDef(exec func(ctx context.Context, status string) (order, error)) MutationDef[string, order] {
	return MutationDef[string, order]{
		Name: "update-status",
		Exec: exec,
		Patches: []Patch[order]{
			ReplaceData(func(order) Key { return order3Key }, func(o order) any { return o }),
			UpdateData(func(order) Key { return ordersKey }, func(old []order, r order) []order {
				out := make([]order, len(old))
				for i, o := range old {
					if o.ID == r.ID {
						o.Status = r.Status
					}
					out[i] = o
				}
				return out
			}),
		},
	}
}

func seedOrders(c *Client) []order {
	list := []order{
		{ID: 1, Status: "paid", Products: []lineItem{{1, 1}}},
		{ID: 3, Status: "pending", Products: []lineItem{{7, 2}}},
		{ID: 4, Status: "shipped", Products: []lineItem{{9, 1}}},
	}
	c.Store().Batch(func(tx *Tx) { tx.SetData(ordersKey, list) })
	return list
}

// TestMutationPatchesDetailAndCollection: detail replaced with the server
// record; collection keeps its order and records, only status changes.
func TestMutationPatchesDetailAndCollection(t *testing.T) {
	c := newTestClient(t, Options{})
	before := seedOrders(c)
	server := order{ID: 3, Status: "shipped", Products: []lineItem{{7, 2}}}
	m := NewMutation(c, updateStatusDef(func(_ context.Context, s string) (order, error) {
		return order{ID: 3, Status: s, Products: []lineItem{{7, 2}}}, nil
	}))

	// Listener of the collection must already see the detail patch.
	var detailSeen any
	c.Store().Subscribe(ordersKey, func(Entry) { detailSeen = c.Store().Get(order3Key).Data })

	got, err := m.Run(context.Background(), "shipped")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(server, got); diff != "" {
		t.Fatalf("result (-want +got):\n%s", diff)
	}

	detail := c.Store().Get(order3Key)
	if detail.Status != StatusSuccess {
		t.Fatalf("detail status = %s", detail.Status)
	}
	if diff := cmp.Diff(server, detail.Data); diff != "" {
		t.Fatalf("detail (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(server, detailSeen); diff != "" {
		t.Fatalf("collection listener saw partial update (-want +got):\n%s", diff)
	}

	after, ok := Data[[]order](c.Store().Get(ordersKey))
	if !ok || len(after) != len(before) {
		t.Fatalf("collection = %v", after)
	}
	want := append([]order(nil), before...)
	want[1].Status = "shipped"
	if diff := cmp.Diff(want, after); diff != "" {
		t.Fatalf("collection (-want +got):\n%s", diff)
	}
	if before[1].Status != "pending" {
		t.Fatalf("patch mutated the previous collection value")
	}
	for _, i := range []int{0, 2} {
		if &after[i].Products[0] != &before[i].Products[0] {
			t.Fatalf("record %d was copied deeply; untouched records must share their data", i)
		}
	}
	if m.Status() != MutationSuccess {
		t.Fatalf("mutation status = %s", m.Status())
	}
}

// TestMutationSkipsCollectionWithoutBaseline: a never-fetched collection is
// not fabricated by the patch.
func TestMutationSkipsCollectionWithoutBaseline(t *testing.T) {
	h := newRecHooks()
	c := newTestClient(t, Options{Hooks: h})
	m := NewMutation(c, updateStatusDef(func(_ context.Context, s string) (order, error) {
		return order{ID: 3, Status: s}, nil
	}))
	if _, err := m.Run(context.Background(), "shipped"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if e := c.Store().Get(ordersKey); e.Status != StatusIdle || e.Data != nil {
		t.Fatalf("collection fabricated: %+v", e)
	}
	if e := c.Store().Get(order3Key); e.Status != StatusSuccess {
		t.Fatalf("detail should still be written, status=%s", e.Status)
	}
	if len(h.skipped) != 1 || h.skipped[0] != "[orders]:no_baseline" {
		t.Fatalf("skipped = %v", h.skipped)
	}
}

func TestMutationInFlightRejected(t *testing.T) {
	h := newRecHooks()
	c := newTestClient(t, Options{Hooks: h})
	exec := newFakeProducer[order]()
	m := NewMutation(c, updateStatusDef(func(ctx context.Context, s string) (order, error) {
		return exec.fetchWith(ctx, s)
	}))

	done := make(chan error, 1)
	go func() {
		_, err := m.Run(context.Background(), "paid")
		done <- err
	}()
	first := exec.next(t)
	if m.Status() != MutationPending {
		t.Fatalf("status while running = %s", m.Status())
	}

	if _, err := m.Run(context.Background(), "shipped"); !errors.Is(err, ErrMutationInFlight) {
		t.Fatalf("second Run: %v", err)
	}
	exec.expectNoCall(t)
	if h.rejected != 1 {
		t.Fatalf("rejected = %d", h.rejected)
	}

	first.reply <- result[order]{v: order{ID: 3, Status: "paid"}}
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if got := exec.n.Load(); got != 1 {
		t.Fatalf("executor called %d times", got)
	}
}

func TestMutationFailureLeavesCacheUntouched(t *testing.T) {
	c := newTestClient(t, Options{})
	before := seedOrders(c)
	c.Store().Batch(func(tx *Tx) { tx.SetData(order3Key, before[1]) })
	boom := errors.New("remote rejected")
	m := NewMutation(c, updateStatusDef(func(context.Context, string) (order, error) {
		return order{}, boom
	}))

	states := make(chan MutationStatus, 4)
	unsub := m.Subscribe(func(e Entry) { states <- MutationStatusOf(e) })
	defer unsub()

	if _, err := m.Run(context.Background(), "shipped"); err != boom {
		t.Fatalf("Run err = %v, want original", err)
	}
	if st := <-states; st != MutationPending {
		t.Fatalf("first state = %s", st)
	}
	if st := <-states; st != MutationError {
		t.Fatalf("second state = %s", st)
	}
	if m.State().Err != boom {
		t.Fatalf("state err = %v", m.State().Err)
	}
	if diff := cmp.Diff(before, c.Store().Get(ordersKey).Data); diff != "" {
		t.Fatalf("collection changed on failure:\n%s", diff)
	}
	if diff := cmp.Diff(before[1], c.Store().Get(order3Key).Data); diff != "" {
		t.Fatalf("detail changed on failure:\n%s", diff)
	}

	m.Reset()
	if m.Status() != MutationIdle {
		t.Fatalf("after Reset status = %s", m.Status())
	}
}

func TestMutationValidateRejectsBeforeExec(t *testing.T) {
	c := newTestClient(t, Options{})
	bad := errors.New("bad status")
	def := updateStatusDef(func(context.Context, string) (order, error) {
		t.Errorf("exec must not run for an invalid payload")
		return order{}, nil
	})
	def.Validate = func(s string) error {
		if s == "lost" {
			return bad
		}
		return nil
	}
	m := NewMutation(c, def)
	if _, err := m.Run(context.Background(), "lost"); err != bad {
		t.Fatalf("Run err = %v", err)
	}
	if m.Status() != MutationError {
		t.Fatalf("status = %s", m.Status())
	}
}

// TestMutationSupersedesInflightDetailFetch: a fetch of the detail that was
// started before the mutation cannot overwrite the confirmed record.
func TestMutationSupersedesInflightDetailFetch(t *testing.T) {
	h := newRecHooks()
	c := newTestClient(t, Options{Hooks: h})
	p := newFakeProducer[order]()
	Ensure(c, Query[order]{Key: order3Key, Fetch: p.fetch})
	inflight := p.next(t)

	m := NewMutation(c, updateStatusDef(func(_ context.Context, s string) (order, error) {
		return order{ID: 3, Status: s}, nil
	}))
	if _, err := m.Run(context.Background(), "shipped"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	inflight.reply <- result[order]{v: order{ID: 3, Status: "pending"}}
	<-h.discarded
	if o, _ := Data[order](c.Store().Get(order3Key)); o.Status != "shipped" {
		t.Fatalf("in-flight fetch overwrote mutation result: %+v", o)
	}
}

func TestMutationKeyDefaultsArePrivate(t *testing.T) {
	c := newTestClient(t, Options{})
	exec := func(context.Context, string) (order, error) { return order{}, nil }
	a := NewMutation(c, MutationDef[string, order]{Name: "m", Exec: exec})
	b := NewMutation(c, MutationDef[string, order]{Name: "m", Exec: exec})
	if a.Key().Equal(b.Key()) {
		t.Fatalf("two instances share state key %s", a.Key())
	}
	if !a.Key().HasPrefix(MutationKey("m")) {
		t.Fatalf("state key %s not under mutation prefix", a.Key())
	}
}

// TestMutationResetDuringRun: Reset racing with runs never hides a run that
// is already pending.
func TestMutationResetDuringRun(t *testing.T) {
	c := newTestClient(t, Options{})
	var (
		m      *Mutation[string, order]
		hidden atomic.Int32
	)
	m = NewMutation(c, MutationDef[string, order]{
		Name: "update-status",
		Exec: func(context.Context, string) (order, error) {
			for i := 0; i < 20; i++ {
				runtime.Gosched()
			}
			if m.Status() != MutationPending {
				hidden.Add(1)
			}
			return order{ID: 3}, nil
		},
	})

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				m.Reset()
			}
		}
	}()
	for i := 0; i < 200; i++ {
		if _, err := m.Run(context.Background(), "paid"); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}
	close(stop)
	<-done
	if n := hidden.Load(); n != 0 {
		t.Fatalf("Reset hid %d pending runs", n)
	}
}
