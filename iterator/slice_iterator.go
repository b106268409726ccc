package iterator

import "github.com/opdss/dispatcher/contracts/iterator"

var _ iterator.Iterator[any] = (*SliceIterator[any])(nil)

// SliceIterator 切片迭代器, 迭代的是构造时传入的切片, 之后对原集合的修改不影响迭代
type SliceIterator[T any] struct {
	index int
	data  []T
}

func NewSliceIterator[T any](data []T) *SliceIterator[T] {
	return &SliceIterator[T]{data: data}
}

func (it *SliceIterator[T]) Next() bool {
	return it.index < len(it.data)
}

func (it *SliceIterator[T]) Value() T {
	var v T
	if it.index < len(it.data) {
		v = it.data[it.index]
		it.index++
	}
	return v
}

// Len 剩余未迭代的数量
func (it *SliceIterator[T]) Len() int {
	return len(it.data) - it.index
}
