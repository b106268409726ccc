package dispatcher

import (
	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

type Option func(opt *options)

// WithLogger 设置日志, 只在订阅/退订/清空时输出 debug 日志, 派发不打日志
func WithLogger(logger *zap.Logger) Option {
	return func(opt *options) {
		if logger != nil {
			opt.logger = logger
		}
	}
}

// WithName 设置事件名称, 用于日志. 绑定到 Pool 且未设置名称时使用 Topic
func WithName(name string) Option {
	return func(opt *options) {
		opt.name = name
	}
}

type options struct {
	logger *zap.Logger
	name   string
}

func newOptions(opts ...Option) options {
	o := options{logger: nopLogger}
	for i := range opts {
		opts[i](&o)
	}
	return o
}

func (o *options) log() *zap.Logger {
	if o.logger == nil {
		return nopLogger
	}
	return o.logger
}
