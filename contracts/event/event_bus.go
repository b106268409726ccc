package event

// Subscribable 只读视图: 只能订阅和退订, 不能派发
type Subscribable[T any] interface {
	// Subscribe 订阅事件, 已订阅的处理器重复订阅不会产生新的回调
	Subscribe(Handler[T]) UnsubscribeFunc
	// Unsubscribe 退订, 未订阅的处理器直接忽略
	Unsubscribe(Handler[T])
	// Clear 清空全部订阅者
	Clear()
}

// Dispatchable 派发能力
type Dispatchable[T any] interface {
	Dispatch(T)
}

// Dispatcher 单事件派发器
type Dispatcher[T any] interface {
	Subscribable[T]
	Dispatchable[T]
}
