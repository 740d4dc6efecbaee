package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/api"
	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/database"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/output"
	"github.com/wfunc/slot-simulator/internal/registry"
	"github.com/wfunc/slot-simulator/internal/session"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 模拟器API服务实例
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	db         *gorm.DB
	log        *zap.Logger
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("slot-simulator-server %s (构建时间 %s, 提交 %s, %s)\n",
			Version, BuildTime, GitCommit, runtime.Version())
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if _, err := maxprocs.Set(maxprocs.Logger(logger.GetSugar().Infof)); err != nil {
		logger.Warn("设置GOMAXPROCS失败", zap.Error(err))
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("服务初始化失败", zap.Error(err))
	}

	if err := server.Start(); err != nil {
		logger.Fatal("服务启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务已安全关闭")
}

// NewServer 创建服务实例
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	machines := registry.NewMachineRegistry()
	if err := machines.LoadDir(cfg.Simulator.MachinesDir); err != nil {
		return nil, err
	}
	players := registry.NewPlayerRegistry()
	if err := players.LoadDir(cfg.Simulator.PlayersDir); err != nil {
		return nil, err
	}

	logger.Info("配置加载完成",
		zap.Strings("machines", machines.IDs()),
		zap.Strings("players", players.IDs()))

	var db *gorm.DB
	if cfg.Simulator.Output.SaveToDatabase {
		if err := database.Init(&cfg.Database); err != nil {
			return nil, err
		}
		db = database.GetDB()
	}

	outputMgr, err := output.NewManager(&cfg.Simulator.Output)
	if err != nil {
		return nil, err
	}

	var sink session.OutputSink = outputMgr
	if db != nil {
		sink = output.NewMultiSink(outputMgr,
			output.NewDatabaseSink(db, "api", cfg.Simulator.Output.WriteSpins))
	}

	router := api.NewRouter(machines, players, &cfg.Simulator, sink, db)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router.Engine(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		db:  db,
		log: logger.GetLogger(),
	}, nil
}

// Start 启动HTTP服务
func (s *Server) Start() error {
	// 日志级别支持热更新
	config.Watch(func(newCfg *config.Config) {
		s.log.Info("配置已更新", zap.String("log_level", newCfg.Log.Level))
		logger.SetLevel(newCfg.Log.Level)
	})

	go func() {
		s.log.Info("HTTP服务启动",
			zap.String("address", s.httpServer.Addr),
			zap.String("mode", s.cfg.Server.Mode))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal("HTTP服务异常退出", zap.Error(err))
		}
	}()

	return nil
}

// WaitForShutdown 阻塞等待退出信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	s.log.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭
func (s *Server) Shutdown() error {
	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if s.db != nil {
		return database.Close()
	}
	return nil
}
