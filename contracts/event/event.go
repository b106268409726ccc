package event

// Topic 事件名称, 作为 Pool 的键
type Topic string

// Handler 事件处理器.
// 处理器以接口值相等判断是否为同一个, 因此其动态类型必须可比较(通常为指针).
type Handler[T any] interface {
	Handle(T)
}

// UnsubscribeFunc 取消订阅, 重复调用无副作用
type UnsubscribeFunc func()

type funcHandler[T any] struct {
	fn func(T)
}

func (f *funcHandler[T]) Handle(v T) {
	f.fn(v)
}

// Func 将普通函数包装为 Handler, 返回值本身即为该处理器的身份.
// 同一个函数包装两次得到的是两个不同的处理器.
func Func[T any](fn func(T)) Handler[T] {
	return &funcHandler[T]{fn: fn}
}
