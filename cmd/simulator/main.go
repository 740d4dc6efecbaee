package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/database"
	"github.com/wfunc/slot-simulator/internal/events"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/output"
	"github.com/wfunc/slot-simulator/internal/registry"
	"github.com/wfunc/slot-simulator/internal/session"
	"github.com/wfunc/slot-simulator/internal/simulation"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		machinesDir = flag.String("machines", "", "机器配置目录（覆盖配置文件）")
		playersDir  = flag.String("players", "", "玩家配置目录（覆盖配置文件）")
		sessions    = flag.Int("sessions", 0, "每个玩家×机器配对的会话数（覆盖配置文件）")
		seed        = flag.Int64("seed", 0, "随机种子（覆盖配置文件）")
		mcMachine   = flag.String("mc-machine", "", "蒙特卡洛模式：机器ID")
		mcSpins     = flag.Int64("mc-spins", 1000000, "蒙特卡洛模式：旋转次数")
		mcBet       = flag.Float64("mc-bet", 1.0, "蒙特卡洛模式：单次投注额")
		mcLines     = flag.Int("mc-lines", 0, "蒙特卡洛模式：激活线数（0为全部）")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
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

	// 容器环境下对齐CPU配额
	if _, err := maxprocs.Set(maxprocs.Logger(logger.GetSugar().Infof)); err != nil {
		logger.Warn("设置GOMAXPROCS失败", zap.Error(err))
	}

	// 命令行覆盖
	if *machinesDir != "" {
		cfg.Simulator.MachinesDir = *machinesDir
	}
	if *playersDir != "" {
		cfg.Simulator.PlayersDir = *playersDir
	}
	if *sessions > 0 {
		cfg.Simulator.SessionsPerPair = *sessions
	}
	if *seed != 0 {
		cfg.Simulator.Seed = *seed
	}

	machines := registry.NewMachineRegistry()
	if err := machines.LoadDir(cfg.Simulator.MachinesDir); err != nil {
		logger.Fatal("加载机器配置失败",
			zap.String("dir", cfg.Simulator.MachinesDir),
			zap.Error(err))
	}
	logger.Info("机器配置加载完成", zap.Strings("machines", machines.IDs()))

	// 蒙特卡洛模式只需要机器
	if *mcMachine != "" {
		runMonteCarlo(machines, *mcMachine, *mcSpins, *mcBet, *mcLines, cfg.Simulator.Seed)
		return
	}

	players := registry.NewPlayerRegistry()
	if err := players.LoadDir(cfg.Simulator.PlayersDir); err != nil {
		logger.Fatal("加载玩家配置失败",
			zap.String("dir", cfg.Simulator.PlayersDir),
			zap.Error(err))
	}
	logger.Info("玩家配置加载完成", zap.Strings("players", players.IDs()))

	runBatch(cfg, machines, players)
}

// runMonteCarlo 机器RTP估算模式
func runMonteCarlo(machines *registry.MachineRegistry, machineID string, spins int64, bet float64, lines int, seed int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m, err := machines.Mint(machineID, seed)
	if err != nil {
		logger.Fatal("机器不存在", zap.String("machine_id", machineID), zap.Error(err))
	}

	result, err := simulation.EstimateRTP(m, spins, bet, lines)
	if err != nil {
		logger.Fatal("蒙特卡洛估算失败", zap.Error(err))
	}

	fmt.Printf("机器: %s\n", result.MachineID)
	fmt.Printf("旋转次数: %d (免费旋转 %d)\n", result.Spins, result.FreeSpinsPlayed)
	fmt.Printf("RTP: %.4f%%\n", result.RTP)
	fmt.Printf("命中率: %.4f\n", result.HitRate)
	fmt.Printf("分散触发率: %.6f\n", result.ScatterRate)
	fmt.Printf("大奖次数: %d\n", result.BigWinCount)
	fmt.Printf("最大赔率: %.2f\n", result.MaxOdds)
	fmt.Printf("耗时: %s (%.0f 旋转/秒)\n", result.Duration.Round(time.Millisecond), result.SpinsPerSec)
}

// runBatch 批量会话模拟模式
func runBatch(cfg *config.Config, machines *registry.MachineRegistry, players *registry.PlayerRegistry) {
	outputMgr, err := output.NewManager(&cfg.Simulator.Output)
	if err != nil {
		logger.Fatal("初始化输出目录失败", zap.Error(err))
	}

	runID := uuid.New().String()

	var sink session.OutputSink = outputMgr
	if cfg.Simulator.Output.SaveToDatabase {
		if err := database.Init(&cfg.Database); err != nil {
			logger.Fatal("初始化数据库失败", zap.Error(err))
		}
		defer database.Close()

		// 数据库端与文件端并联写入
		dbSink := output.NewDatabaseSink(database.GetDB(), runID, cfg.Simulator.Output.WriteSpins)
		sink = output.NewMultiSink(outputMgr, dbSink)
	}

	dispatcher := events.NewDispatcher()
	for _, et := range []events.EventType{events.BigWin, events.FreeSpinsTriggered} {
		dispatcher.Subscribe(et, func(e events.Event) {
			logger.LogSessionEvent(string(e.Type), e.SessionID, e.Payload)
		})
	}
	coord := simulation.NewCoordinator(machines, players, &cfg.Simulator, dispatcher, sink)

	var lastPercent int
	coord.OnProgress(func(p simulation.Progress) {
		percent := int(p.Percent)
		if percent/10 > lastPercent/10 {
			logger.LogSimulationProgress(p.RunID, p.Completed, p.Total, p.Percent)
		}
		lastPercent = percent
	})

	result, err := coord.RunWithID(runID)
	if err != nil {
		logger.Fatal("批量模拟失败", zap.Error(err))
	}

	if err := outputMgr.WriteRunReport(result.ToMap()); err != nil {
		logger.Error("写入运行报告失败", zap.Error(err))
	}

	fmt.Printf("运行ID: %s\n", result.RunID)
	fmt.Printf("会话总数: %d (失败 %d)\n", result.TotalSessions, result.FailedSessions)
	fmt.Printf("旋转总数: %d\n", result.TotalSpins)
	fmt.Printf("整体RTP: %.4f%%\n", result.OverallRTP)
	fmt.Printf("耗时: %s (%.1f 会话/秒)\n", result.Duration.Round(time.Millisecond), result.SessionsPerSec)
	fmt.Printf("输出目录: %s\n", outputMgr.RunDir())
}

func printVersion() {
	fmt.Printf("slot-simulator %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
}
