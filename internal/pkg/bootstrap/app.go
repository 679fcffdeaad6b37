// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/pkg/nacos"
	"pulsecart/internal/pkg/tracing"
)

// AppCtx 传递给业务方的装配上下文。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 每个服务注册自己独特的 HTTP 路由
	OnShutdown       []func(ctx context.Context)
}

// StartService 封装了服务的通用启动和优雅关停逻辑。
// 顺序: 配置 -> 日志 -> Tracer -> (可选)Nacos 注册 -> HTTP Server -> 阻塞等退出信号。
func StartService(info AppInfo) {
	cfg := GetCurrentConfig()
	logger.Init(info.ServiceName)

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. 服务注册（按需开启，本地开发可以不依赖 Nacos）
	var namingClient *nacos.Client
	var registeredIP string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		registeredIP, err = getOutboundIP()
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, registeredIP, info.Port); err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 3. 创建并启动 HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.Logger().Info().Int("port", info.Port).Msgf("%s listening", info.ServiceName)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 4. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger().Info().Msgf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 清理顺序: 先注销流量入口，再停业务组件，最后刷掉追踪缓冲 (后进先出)
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, registeredIP, info.Port); err != nil {
			logger.Logger().Error().Err(err).Msg("Error deregistering from Nacos")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down http server")
	}

	for i := len(info.OnShutdown) - 1; i >= 0; i-- {
		info.OnShutdown[i](ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("Error shutting down tracer provider")
	}

	logger.Logger().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// getOutboundIP 获取本机对外通信的 IP，用于服务注册。
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
