package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"vault/internal/pkg/logger"
	"vault/internal/pkg/nacos"
	"vault/internal/tracing"
)

// Worker 是随服务一起运行的后台任务，ctx 结束时应尽快返回。
type Worker func(ctx context.Context) error

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	Config  *Config
	Handler http.Handler
	Workers []Worker
	// Cleanup 在 HTTP 服务关闭后按注册的逆序执行
	Cleanup []func()
}

// StartService 封装了微服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号或某个组件失败。
func StartService(info AppInfo) error {
	cfg := info.Config
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tp *sdktrace.TracerProvider
	if cfg.Infra.Jaeger.Endpoint != "" {
		var err error
		tp, err = tracing.InitTracerProvider(cfg.Service.Name, cfg.Infra.Jaeger.Endpoint)
		if err != nil {
			return errors.Wrap(err, "init tracer provider")
		}
	}

	deregister, err := registerNacos(cfg)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: info.Handler}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})
	for _, w := range info.Workers {
		g.Go(func() error { return w(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info().Str("service", cfg.Service.Name).Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
		defer cancel()

		deregister()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().Error().Err(err).Msg("error shutting down http server")
		}
		for i := len(info.Cleanup) - 1; i >= 0; i-- {
			info.Cleanup[i]()
		}
		if tp != nil {
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.L().Error().Err(err).Msg("error shutting down tracer provider")
			}
		}
		return nil
	})

	err = g.Wait()
	logger.L().Info().Err(err).Str("service", cfg.Service.Name).Msg("service stopped")
	return err
}

// registerNacos 在配置了 Nacos 时注册服务实例，返回对应的注销函数。
func registerNacos(cfg *Config) (func(), error) {
	nc := cfg.Infra.Nacos
	if nc.ServerAddrs == "" {
		return func() {}, nil
	}
	client, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
	if err != nil {
		return nil, err
	}
	ip, err := outboundIP()
	if err != nil {
		return nil, errors.Wrap(err, "get outbound ip")
	}
	if err := client.RegisterServiceInstance(cfg.Service.Name, ip, cfg.Service.Port); err != nil {
		return nil, err
	}
	return func() {
		if err := client.DeregisterServiceInstance(cfg.Service.Name, ip, cfg.Service.Port); err != nil {
			logger.L().Error().Err(err).Msg("error deregistering from nacos")
		}
	}, nil
}

// outboundIP 返回访问外网时使用的本机地址，UDP 拨号不会真正发包。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
