package process

import (
	"os"
	"path/filepath"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string `help:"日志级别[debug|info|warn|error]" default:"info"`
	Format     string `help:"日志格式[console|json]" default:"console"`
	Output     string `help:"日志文件, 为空时输出到stderr" default:""`
	MaxSize    int    `help:"单个日志文件大小(MB)" default:"100"`
	MaxBackups int    `help:"保留的旧日志文件数量" default:"3"`
	MaxAge     int    `help:"旧日志文件保留天数" default:"30"`
	Compress   bool   `help:"是否压缩旧日志文件" default:"false"`
}

// NewLogger 按配置创建 zap 日志, 输出到文件时使用 lumberjack 切割
func NewLogger(conf LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	encConfig := zap.NewProductionEncoderConfig()
	encConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var ws zapcore.WriteSyncer
	if conf.Output == "" {
		ws = zapcore.Lock(os.Stderr)
		if conf.Format != "json" {
			encConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(conf.Output), 0o755); err != nil {
			return nil, errs.Wrap(err)
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   conf.Output,
			MaxSize:    conf.MaxSize,
			MaxBackups: conf.MaxBackups,
			MaxAge:     conf.MaxAge,
			Compress:   conf.Compress,
		})
	}

	var enc zapcore.Encoder
	switch conf.Format {
	case "json":
		enc = zapcore.NewJSONEncoder(encConfig)
	case "console", "":
		enc = zapcore.NewConsoleEncoder(encConfig)
	default:
		return nil, errs.New("unknown log format %q", conf.Format)
	}

	return zap.New(zapcore.NewCore(enc, ws, level), zap.AddCaller()), nil
}
