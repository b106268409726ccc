package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/opdss/dispatcher/contracts/event"
)

type item struct {
	ID    string
	Value int
}

var (
	stringEvent = NewKey[string]("stringEvent")
	numberEvent = NewKey[float64]("numberEvent")
	objectEvent = NewKey[item]("objectEvent")
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p, err := NewPool([]Binding{
		Bind(stringEvent, NewDispatcher[string]()),
		Bind(numberEvent, NewDispatcher[float64]()),
		Bind(objectEvent, NewDispatcher[item]()),
	})
	require.NoError(t, err)
	return p
}

func TestPoolNew(t *testing.T) {
	p := newTestPool(t)
	assert.Equal(t, []event.Topic{"stringEvent", "numberEvent", "objectEvent"}, p.Topics())
	assert.True(t, p.Has("numberEvent"))
	assert.False(t, p.Has("missing"))
	assert.Equal(t, "float64", p.ValueType("numberEvent"))
	assert.Equal(t, "dispatcher.item", p.ValueType("objectEvent"))
}

func TestPoolNewErrors(t *testing.T) {
	_, err := NewPool([]Binding{
		Bind(stringEvent, NewDispatcher[string]()),
		Bind(NewKey[int]("stringEvent"), NewDispatcher[int]()),
	})
	require.Error(t, err)
	assert.True(t, ErrPool.Has(err))

	_, err = NewPool([]Binding{Bind[string](stringEvent, nil)})
	require.Error(t, err)
	assert.True(t, ErrPool.Has(err))

	_, err = NewPool([]Binding{Bind(NewKey[string](""), NewDispatcher[string]())})
	require.Error(t, err)

	assert.Panics(t, func() {
		MustNewPool([]Binding{Bind[int](NewKey[int]("x"), nil)})
	})
}

func TestPoolOnDispatch(t *testing.T) {
	p := newTestPool(t)
	sh := &recorder[string]{}
	nh := &recorder[float64]{}
	oh := &recorder[item]{}

	On(p, stringEvent, sh)
	On(p, numberEvent, nh)
	On(p, objectEvent, oh)

	Dispatch(p, stringEvent, "test message")
	Dispatch(p, numberEvent, 42)
	Dispatch(p, objectEvent, item{ID: "test", Value: 100})

	assert.Equal(t, []string{"test message"}, sh.calls)
	assert.Equal(t, []float64{42}, nh.calls)
	assert.Equal(t, []item{{ID: "test", Value: 100}}, oh.calls)
}

func TestPoolIndependentKeys(t *testing.T) {
	x := NewKey[int]("x")
	y := NewKey[string]("y")
	p := MustNewPool([]Binding{
		Bind(x, NewDispatcher[int]()),
		Bind(y, NewDispatcher[string]()),
	})
	hx := &recorder[int]{}
	hy := &recorder[string]{}
	On(p, x, hx)
	On(p, y, hy)

	Dispatch(p, x, 7)

	assert.Equal(t, []int{7}, hx.calls)
	assert.Empty(t, hy.calls)
}

func TestPoolUnsubscribe(t *testing.T) {
	p := newTestPool(t)
	h := &recorder[string]{}
	other := &recorder[string]{}
	unsubscribe := On(p, stringEvent, h)
	On(p, stringEvent, other)

	Dispatch(p, stringEvent, "first")
	unsubscribe()
	Dispatch(p, stringEvent, "second")
	Off(p, stringEvent, other)
	Off(p, stringEvent, other)
	Dispatch(p, stringEvent, "third")

	assert.Equal(t, []string{"first"}, h.calls)
	assert.Equal(t, []string{"first", "second"}, other.calls)
	assert.Zero(t, p.Subscribers("stringEvent"))
}

func TestPoolDestroy(t *testing.T) {
	p := newTestPool(t)
	sh := &recorder[string]{}
	nh := &recorder[float64]{}
	On(p, stringEvent, sh)
	On(p, numberEvent, nh)

	Dispatch(p, stringEvent, "message")
	Dispatch(p, numberEvent, 123)

	p.Destroy()
	for _, topic := range p.Topics() {
		assert.Zero(t, p.Subscribers(topic))
	}

	Dispatch(p, stringEvent, "another message")
	Dispatch(p, numberEvent, 456)
	assert.Len(t, sh.calls, 1)
	assert.Len(t, nh.calls, 1)

	// destroy is not permanent
	On(p, stringEvent, sh)
	Dispatch(p, stringEvent, "after destroy")
	assert.Equal(t, []string{"message", "after destroy"}, sh.calls)

	empty := MustNewPool(nil)
	assert.NotPanics(t, empty.Destroy)
	var zero Pool
	assert.NotPanics(t, zero.Destroy)
}

func TestPoolUnknownKey(t *testing.T) {
	p := newTestPool(t)

	assert.Panics(t, func() {
		Dispatch(p, NewKey[string]("missing"), "x")
	})
	assert.Panics(t, func() {
		On(p, NewKey[int]("stringEvent"), &recorder[int]{})
	})

	_, ok := Lookup(p, NewKey[int]("stringEvent"))
	assert.False(t, ok)
	d, ok := Lookup(p, stringEvent)
	require.True(t, ok)
	assert.Equal(t, 0, d.Len())
}

func TestPoolNamesDispatchers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	named := NewDispatcher[int](WithLogger(logger), WithName("custom"))
	unnamed := NewDispatcher[int](WithLogger(logger))
	p := MustNewPool([]Binding{
		Bind(NewKey[int]("a"), named),
		Bind(NewKey[int]("b"), unnamed),
	}, WithLogger(logger))

	On(p, NewKey[int]("a"), &recorder[int]{})
	On(p, NewKey[int]("b"), &recorder[int]{})
	p.Destroy()

	subscribed := logs.FilterMessage("subscribed").All()
	require.Len(t, subscribed, 2)
	assert.Equal(t, "custom", subscribed[0].ContextMap()["event"])
	assert.Equal(t, "b", subscribed[1].ContextMap()["event"])
	assert.Equal(t, 1, logs.FilterMessage("pool destroyed").Len())
}

type customPool struct {
	*Pool
}

var customEvent = NewKey[string]("event")

func newCustomPool() *customPool {
	return &customPool{
		Pool: MustNewPool([]Binding{Bind(customEvent, NewDispatcher[string]())}),
	}
}

func (c *customPool) customMethod() string {
	return "custom method called"
}

func (c *customPool) greet(name string) {
	Dispatch(c.Pool, customEvent, "hello "+name)
}

func TestPoolExtension(t *testing.T) {
	c := newCustomPool()
	assert.Equal(t, "custom method called", c.customMethod())

	h := &recorder[string]{}
	On(c.Pool, customEvent, h)
	Dispatch(c.Pool, customEvent, "test")
	c.greet("bob")
	c.Destroy()
	c.greet("alice")

	assert.Equal(t, []string{"test", "hello bob"}, h.calls)
}
