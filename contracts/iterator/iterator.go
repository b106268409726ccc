package iterator

// Iterator 只进迭代器
type Iterator[T any] interface {
	// Next 是否还有数据
	Next() bool
	// Value 取出当前数据并前进一位
	Value() T
}
