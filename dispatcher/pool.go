package dispatcher

import (
	"fmt"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/opdss/dispatcher/contracts/event"
)

// ErrPool 派发池错误, 构造失败时返回; 使用了池中不存在的 Key 时以该类错误 panic
var ErrPool = errs.Class("dispatcher pool")

// Key 带类型的事件键, T 为该事件派发的值类型
type Key[T any] struct {
	topic event.Topic
}

func NewKey[T any](topic event.Topic) Key[T] {
	return Key[T]{topic: topic}
}

func (k Key[T]) Topic() event.Topic {
	return k.topic
}

func (k Key[T]) String() string {
	var zero T
	return fmt.Sprintf("%s(%T)", k.topic, zero)
}

type bound interface {
	Clear()
	Len() int
	setName(string)
}

// Binding 事件键与派发器的绑定, 由 Bind 创建
type Binding struct {
	topic      event.Topic
	dispatcher bound
	valueType  string
}

// Bind 将派发器绑定到事件键, 值类型由编译器保证一致
func Bind[T any](key Key[T], d *Dispatcher[T]) Binding {
	var zero T
	b := Binding{topic: key.topic, valueType: fmt.Sprintf("%T", zero)}
	if d != nil {
		b.dispatcher = d
	}
	return b
}

// Pool 一组具名派发器, 键集合在构造时确定, 之后只有订阅者会变化.
//
// Pool 没有需要覆盖的方法, 可直接嵌入到外部结构体中扩展:
//
//	type Events struct {
//		*dispatcher.Pool
//	}
//
//	func (e *Events) Ready() { dispatcher.Dispatch(e.Pool, ReadyKey, struct{}{}) }
type Pool struct {
	topics      []event.Topic
	dispatchers map[event.Topic]bound
	types       map[event.Topic]string
	logger      *zap.Logger
}

func NewPool(bindings []Binding, opts ...Option) (*Pool, error) {
	o := newOptions(opts...)
	p := &Pool{
		topics:      make([]event.Topic, 0, len(bindings)),
		dispatchers: make(map[event.Topic]bound, len(bindings)),
		types:       make(map[event.Topic]string, len(bindings)),
		logger:      o.log(),
	}
	for _, b := range bindings {
		if b.topic == "" {
			return nil, ErrPool.New("empty topic")
		}
		if b.dispatcher == nil {
			return nil, ErrPool.New("nil dispatcher for topic %q", b.topic)
		}
		if _, ok := p.dispatchers[b.topic]; ok {
			return nil, ErrPool.New("duplicate topic %q", b.topic)
		}
		b.dispatcher.setName(string(b.topic))
		p.topics = append(p.topics, b.topic)
		p.dispatchers[b.topic] = b.dispatcher
		p.types[b.topic] = b.valueType
	}
	return p, nil
}

// MustNewPool 同 NewPool, 出错时 panic
func MustNewPool(bindings []Binding, opts ...Option) *Pool {
	p, err := NewPool(bindings, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Topics 按绑定顺序返回全部事件名
func (p *Pool) Topics() []event.Topic {
	return append([]event.Topic(nil), p.topics...)
}

func (p *Pool) Has(topic event.Topic) bool {
	_, ok := p.dispatchers[topic]
	return ok
}

// ValueType 事件值类型名称, 如 "int64"
func (p *Pool) ValueType(topic event.Topic) string {
	return p.types[topic]
}

// Subscribers 事件当前订阅者数量, 不存在的事件返回 0
func (p *Pool) Subscribers(topic event.Topic) int {
	d, ok := p.dispatchers[topic]
	if !ok {
		return 0
	}
	return d.Len()
}

// Destroy 退订所有事件的所有订阅者.
// 一般只在模块卸载时调用. 调用后 Pool 仍可继续订阅和派发.
func (p *Pool) Destroy() {
	removed := 0
	for _, topic := range p.topics {
		d := p.dispatchers[topic]
		removed += d.Len()
		d.Clear()
	}
	p.log().Debug("pool destroyed", zap.Int("topics", len(p.topics)), zap.Int("removed", removed))
}

func (p *Pool) log() *zap.Logger {
	if p.logger == nil {
		return nopLogger
	}
	return p.logger
}

// Lookup 取出键对应的派发器, 键不存在或值类型不一致时返回 false
func Lookup[T any](p *Pool, key Key[T]) (*Dispatcher[T], bool) {
	b, ok := p.dispatchers[key.topic]
	if !ok {
		return nil, false
	}
	d, ok := b.(*Dispatcher[T])
	return d, ok
}

// On 订阅事件
func On[T any](p *Pool, key Key[T], handler event.Handler[T]) event.UnsubscribeFunc {
	return mustLookup(p, key).Subscribe(handler)
}

// Off 退订事件
func Off[T any](p *Pool, key Key[T], handler event.Handler[T]) {
	mustLookup(p, key).Unsubscribe(handler)
}

// Dispatch 派发事件
func Dispatch[T any](p *Pool, key Key[T], value T) {
	mustLookup(p, key).Dispatch(value)
}

func mustLookup[T any](p *Pool, key Key[T]) *Dispatcher[T] {
	d, ok := Lookup(p, key)
	if ok {
		return d
	}
	if p.Has(key.topic) {
		panic(ErrPool.New("topic %q is bound to %s, not %s", key.topic, p.types[key.topic], key))
	}
	panic(ErrPool.New("unknown topic %q", key.topic))
}
