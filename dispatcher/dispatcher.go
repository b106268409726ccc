package dispatcher

import (
	"github.com/opdss/dispatcher/contracts/event"
)

var _ event.Dispatcher[any] = (*Dispatcher[any])(nil)

// Dispatcher 单事件派发器.
//
//	type Player struct {
//		moved *dispatcher.Dispatcher[Position]
//	}
//
//	// 对外只暴露订阅能力
//	func (p *Player) OnMoved() event.Subscribable[Position] {
//		return p.moved.Subscribable()
//	}
//
//	func (p *Player) move(to Position) {
//		p.moved.Dispatch(to)
//	}
type Dispatcher[T any] struct {
	Registry[T]
}

func NewDispatcher[T any](opts ...Option) *Dispatcher[T] {
	d := &Dispatcher[T]{}
	d.opts = newOptions(opts...)
	return d
}

// Dispatch 同步通知全部订阅者
func (d *Dispatcher[T]) Dispatch(value T) {
	d.notify(value)
}

// Subscribable 返回只能订阅的视图, 无法通过类型断言拿回派发能力
func (d *Dispatcher[T]) Subscribable() event.Subscribable[T] {
	return subscribeOnly[T]{r: &d.Registry}
}

type subscribeOnly[T any] struct {
	r *Registry[T]
}

func (s subscribeOnly[T]) Subscribe(handler event.Handler[T]) event.UnsubscribeFunc {
	return s.r.Subscribe(handler)
}

func (s subscribeOnly[T]) Unsubscribe(handler event.Handler[T]) {
	s.r.Unsubscribe(handler)
}

func (s subscribeOnly[T]) Clear() {
	s.r.Clear()
}
