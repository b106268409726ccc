package dispatcher

import (
	"reflect"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/opdss/dispatcher/contracts/event"
	contract "github.com/opdss/dispatcher/contracts/iterator"
	"github.com/opdss/dispatcher/iterator"
)

// Error 派发器相关的错误
var Error = errs.Class("dispatcher")

var _ event.Subscribable[any] = (*Registry[any])(nil)

type subscription[T any] struct {
	handler event.Handler[T]
	active  bool
}

// Registry 单个事件的订阅者集合.
//
// 订阅者按订阅顺序通知, 同一个处理器只会出现一次.
// 通知开始时先对订阅者做快照: 通知过程中新增的订阅者从下一次通知开始生效,
// 通知过程中被退订(或 Clear)且尚未轮到的订阅者本次不再调用.
// 处理器 panic 不会被 recover, 会直接传给调用方, 后续处理器不再调用.
//
// 零值可用. 内部有锁, 但派发总是在调用方的 goroutine 中同步执行,
// 调用处理器时不持有锁, 处理器内可以再次订阅/退订/派发.
type Registry[T any] struct {
	mu    sync.Mutex
	subs  []*subscription[T]
	index map[event.Handler[T]]*subscription[T]
	opts  options
}

func NewRegistry[T any](opts ...Option) *Registry[T] {
	return &Registry[T]{opts: newOptions(opts...)}
}

// Subscribe 订阅, 返回的取消函数只会移除本次订阅.
// 处理器的动态类型必须可比较, 否则 panic; 普通函数请用 event.Func 包装.
func (r *Registry[T]) Subscribe(handler event.Handler[T]) event.UnsubscribeFunc {
	if handler == nil {
		return func() {}
	}
	if !isComparable(handler) {
		panic(Error.New("handler of type %T is not comparable, wrap plain funcs with event.Func", handler))
	}

	r.mu.Lock()
	sub, ok := r.index[handler]
	if !ok {
		if r.index == nil {
			r.index = make(map[event.Handler[T]]*subscription[T])
		}
		sub = &subscription[T]{handler: handler, active: true}
		r.index[handler] = sub
		r.subs = append(r.subs, sub)
	}
	n := len(r.subs)
	r.mu.Unlock()

	if !ok {
		r.opts.log().Debug("subscribed", zap.String("event", r.opts.name), zap.Int("subscribers", n))
	}
	return func() {
		r.remove(sub)
	}
}

// Unsubscribe 退订, 未订阅的处理器直接忽略
func (r *Registry[T]) Unsubscribe(handler event.Handler[T]) {
	if handler == nil || !isComparable(handler) {
		return
	}
	r.mu.Lock()
	sub := r.index[handler]
	r.mu.Unlock()
	if sub != nil {
		r.remove(sub)
	}
}

// Clear 清空全部订阅者, 之前返回的取消函数全部失效
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	n := len(r.subs)
	for _, sub := range r.subs {
		sub.active = false
	}
	r.subs = nil
	r.index = nil
	r.mu.Unlock()

	if n > 0 {
		r.opts.log().Debug("cleared", zap.String("event", r.opts.name), zap.Int("removed", n))
	}
}

// Len 当前订阅者数量
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Has 处理器是否已订阅
func (r *Registry[T]) Has(handler event.Handler[T]) bool {
	if handler == nil || !isComparable(handler) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[handler]
	return ok
}

// Handlers 按订阅顺序返回当前订阅者的快照
func (r *Registry[T]) Handlers() contract.Iterator[event.Handler[T]] {
	subs := r.snapshot()
	handlers := make([]event.Handler[T], len(subs))
	for i, sub := range subs {
		handlers[i] = sub.handler
	}
	return iterator.NewSliceIterator(handlers)
}

func (r *Registry[T]) notify(value T) {
	it := iterator.NewSliceIterator(r.snapshot())
	for it.Next() {
		sub := it.Value()
		if !r.isActive(sub) {
			continue
		}
		sub.handler.Handle(value)
	}
}

func (r *Registry[T]) snapshot() []*subscription[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) == 0 {
		return nil
	}
	return slices.Clone(r.subs)
}

func (r *Registry[T]) isActive(sub *subscription[T]) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sub.active
}

func (r *Registry[T]) remove(sub *subscription[T]) {
	r.mu.Lock()
	if !sub.active {
		r.mu.Unlock()
		return
	}
	sub.active = false
	delete(r.index, sub.handler)
	if i := slices.Index(r.subs, sub); i >= 0 {
		r.subs = slices.Delete(r.subs, i, i+1)
	}
	n := len(r.subs)
	r.mu.Unlock()

	r.opts.log().Debug("unsubscribed", zap.String("event", r.opts.name), zap.Int("subscribers", n))
}

func (r *Registry[T]) setName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.name == "" {
		r.opts.name = name
	}
}

// isComparable 判断 v 能否作为 map 键.
// 结构体中的接口字段持有切片等不可比较的值时, reflect 仍认为类型可比较, 只能实际哈希一次
func isComparable(v any) (ok bool) {
	if !reflect.TypeOf(v).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	keys := map[any]struct{}{}
	keys[v] = struct{}{}
	return true
}
