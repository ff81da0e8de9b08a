package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/sentinel/pkg/dom"
	"github.com/entrhq/sentinel/pkg/dom/domtest"
)

const page = `<html><body><div id="watched"></div><div id="other"></div></body></html>`

type waitResult struct {
	node dom.Node
	err  error
}

func startWait(ctx context.Context, w *Waiter, match Matcher, root dom.Node, timeout time.Duration) <-chan waitResult {
	out := make(chan waitResult, 1)
	go func() {
		n, err := w.WaitFor(ctx, match, root, timeout)
		out <- waitResult{node: n, err: err}
	}()
	return out
}

func receive(t *testing.T, ch <-chan waitResult) waitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("wait did not return")
		return waitResult{}
	}
}

func TestWaitForImmediateMatch(t *testing.T) {
	doc := domtest.MustParse(`<html><body><div id="watched"><span class="target"></span></div></body></html>`)
	w := New(doc, WithClock(clockwork.NewFakeClock()))

	n, err := w.WaitFor(context.Background(), Selector(".target"), doc.Find("#watched"), time.Second)
	require.NoError(t, err)
	assert.NotNil(t, n)
	assert.Equal(t, 0, doc.ActiveObservers())
}

func TestWaitForMatchJustBeforeDeadline(t *testing.T) {
	doc := domtest.MustParse(page)
	clock := clockwork.NewFakeClock()
	w := New(doc, WithClock(clock))

	results := startWait(context.Background(), w, Selector(".target"), doc.Find("#watched"), time.Second)

	clock.BlockUntil(2)
	clock.Advance(999 * time.Millisecond)
	doc.MustAppend(doc.Find("#watched"), `<span class="target">late</span>`)

	r := receive(t, results)
	require.NoError(t, r.err)
	require.NotNil(t, r.node)
	text, _ := r.node.TextContent()
	assert.Equal(t, "late", text)
	assert.Equal(t, 0, doc.ActiveObservers())
}

func TestWaitForTimeout(t *testing.T) {
	doc := domtest.MustParse(page)
	clock := clockwork.NewFakeClock()
	w := New(doc, WithClock(clock))

	results := startWait(context.Background(), w, Selector(".target"), doc.Find("#watched"), time.Second)

	clock.BlockUntil(2)
	clock.Advance(time.Second)

	r := receive(t, results)
	assert.ErrorIs(t, r.err, ErrNotFound)
	assert.Nil(t, r.node)
	assert.Equal(t, 0, doc.ActiveObservers())
}

func TestWaitForPollCatchesChangesOutsideObservedSubtree(t *testing.T) {
	doc := domtest.MustParse(page)
	clock := clockwork.NewFakeClock()
	w := New(doc, WithClock(clock), WithPollInterval(50*time.Millisecond))

	// The matcher looks at the whole document while only #watched is observed.
	match := func(dom.Node) (dom.Node, error) {
		return doc.Root().QuerySelector("#other .target")
	}
	results := startWait(context.Background(), w, match, doc.Find("#watched"), time.Second)

	clock.BlockUntil(2)
	doc.MustAppend(doc.Find("#other"), `<span class="target"></span>`)
	clock.Advance(50 * time.Millisecond)

	r := receive(t, results)
	require.NoError(t, r.err)
	assert.NotNil(t, r.node)
}

func TestWaitForContextCancel(t *testing.T) {
	doc := domtest.MustParse(page)
	clock := clockwork.NewFakeClock()
	w := New(doc, WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	results := startWait(ctx, w, Selector(".target"), doc.Find("#watched"), time.Second)

	clock.BlockUntil(2)
	cancel()

	r := receive(t, results)
	assert.True(t, errors.Is(r.err, context.Canceled))
	assert.Equal(t, 0, doc.ActiveObservers())
}

func TestWaitForReleasesObserversAcrossRepeatedCalls(t *testing.T) {
	doc := domtest.MustParse(page)
	w := New(doc, WithPollInterval(5*time.Millisecond))
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := w.WaitFor(ctx, Selector(".never"), doc.Find("#watched"), 10*time.Millisecond)
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 0, doc.ActiveObservers())

	doc.MustAppend(doc.Find("#watched"), `<span class="target"></span>`)
	for i := 0; i < 20; i++ {
		_, err := w.WaitFor(ctx, Selector(".target"), doc.Find("#watched"), 10*time.Millisecond)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, doc.ActiveObservers())
}

func TestWaitForRealClockAsyncInsert(t *testing.T) {
	doc := domtest.MustParse(page)
	w := New(doc)

	time.AfterFunc(20*time.Millisecond, func() {
		doc.MustAppend(doc.Find("#watched"), `<span class="target"></span>`)
	})

	n, err := w.WaitFor(context.Background(), Selector(".target"), nil, 2*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestUntilIgnoresConditionErrors(t *testing.T) {
	doc := domtest.MustParse(page)
	w := New(doc, WithPollInterval(5*time.Millisecond))

	calls := 0
	err := w.Until(context.Background(), nil, time.Second, func() (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("element is not attached to the DOM")
		}
		return true, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 3)
}

func TestSleep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	w := New(domtest.MustParse(page), WithClock(clock))

	done := make(chan error, 1)
	go func() { done <- w.Sleep(context.Background(), time.Minute) }()

	clock.BlockUntil(1)
	clock.Advance(time.Minute)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sleep did not return")
	}
}
