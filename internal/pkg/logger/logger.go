// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	// 默认输出到 stderr，带服务启动即用的兜底配置
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init 初始化全局日志器。service 字段会出现在每一条日志中，
// 便于在集中式日志系统中按服务过滤。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(os.Stderr).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Logger 返回全局日志器，用于没有请求上下文的场景（如启动阶段）。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了追踪上下文的日志器。
// 如果 ctx 中存在有效的 Span，会自动附加 traceId/spanId 字段，
// 这样日志就能和 Jaeger 中的链路互相关联。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &base
	}
	l := base.With().
		Str("traceId", sc.TraceID().String()).
		Str("spanId", sc.SpanID().String()).
		Logger()
	return &l
}
