package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	"github.com/danmaku-cache/danmaku-cache/internal/config"
	"github.com/danmaku-cache/danmaku-cache/internal/logging"
	"github.com/danmaku-cache/danmaku-cache/internal/maintenance"
	"github.com/danmaku-cache/danmaku-cache/internal/metrics"
	"github.com/danmaku-cache/danmaku-cache/internal/provider"
	"github.com/danmaku-cache/danmaku-cache/internal/proxy"
	"github.com/danmaku-cache/danmaku-cache/internal/server"
	"github.com/danmaku-cache/danmaku-cache/internal/server/routes"
	"github.com/danmaku-cache/danmaku-cache/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage_path"] = cfg.StoragePath
		fields["proxy_service"] = cfg.ProxyService
		fields["clean_secret"] = cfg.SecretMode()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}
	defer svc.close()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.ListenPort
	fields["storage_path"] = cfg.StoragePath
	fields["proxy_service"] = cfg.ProxyService
	fields["clean_secret"] = cfg.SecretMode()
	fields["providers"] = provider.Keys()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if interval := cfg.SweepInterval.DurationValue(); interval > 0 {
		go svc.sweeper.Start(ctx, interval)
	}

	if err := startHTTPServer(ctx, cfg, svc.app, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// printVersion 输出注入的版本 + 提交信息。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("danmaku-cache", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（可被 DANMAKU_CACHE_CONFIG 覆盖，缺省时只用默认值与环境变量）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("DANMAKU_CACHE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// service 持有一次启动构建出的全部组件。
type service struct {
	app     *fiber.App
	store   cache.Store
	sweeper *maintenance.Sweeper
	metrics *metrics.Metrics
}

func (s *service) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.metrics.Shutdown(ctx)
}

// buildService 按“指标 → 磁盘缓存 → 回源客户端 → 代理 handler → 清理器 → Fiber”顺序装配，
// 所有请求共享同一份缓存与 HTTP 客户端。
func buildService(cfg *config.Config, logger *logrus.Logger) (*service, error) {
	recorder, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("初始化指标失败: %w", err)
	}

	store, err := cache.NewStore(cfg.StoragePath, cache.Policy{
		TTL:        cfg.CacheTTL.DurationValue(),
		MaxEntries: cfg.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	httpClient := server.NewUpstreamClient(cfg)
	fetcher := proxy.NewHTTPFetcher(httpClient, cfg.ProxyService, server.UpstreamTimeout(cfg))

	forwarder := proxy.NewForwarder(logger, cfg.ErrorRedirect)
	forwarder.MustRegister(proxy.ModeRegistration{
		Mode:    provider.ModeCache,
		Handler: proxy.NewHandler(store, fetcher, logger, recorder),
	})
	forwarder.MustRegister(proxy.ModeRegistration{
		Mode:    provider.ModeRedirect,
		Handler: proxy.NewRedirectHandler(cfg.ProxyService),
	})

	sweeper := maintenance.NewSweeper(store, logger, recorder, cfg.SweepCheckInterval.DurationValue())

	app, err := server.NewApp(server.AppOptions{
		Logger:        logger,
		Proxy:         forwarder,
		Maintainer:    sweeper,
		ErrorRedirect: cfg.ErrorRedirect,
	})
	if err != nil {
		return nil, err
	}
	routes.RegisterCacheRoutes(app, store)
	routes.RegisterCleanRoute(app, sweeper, cfg.CleanSecret, logger)
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Config:  cfg,
		Store:   store,
		Metrics: recorder.Handler(),
	})

	return &service{app: app, store: store, sweeper: sweeper, metrics: recorder}, nil
}

func startHTTPServer(ctx context.Context, cfg *config.Config, app *fiber.App, logger *logrus.Logger) error {
	port := cfg.ListenPort

	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("收到退出信号，停止 Fiber 服务")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
