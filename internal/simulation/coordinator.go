package simulation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/events"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/registry"
	"github.com/wfunc/slot-simulator/internal/session"
)

// Progress 批量模拟的进度通知
type Progress struct {
	RunID     string  `json:"run_id"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
	Failed    int     `json:"failed"`
}

// ProgressFunc 进度回调，每完成一个会话调用一次
type ProgressFunc func(p Progress)

// PairResult 单个玩家×机器配对的聚合结果
type PairResult struct {
	PlayerID   string  `json:"player_id"`
	MachineID  string  `json:"machine_id"`
	Sessions   int     `json:"sessions"`
	TotalSpins int64   `json:"total_spins"`
	TotalBet   float64 `json:"total_bet"`
	TotalWin   float64 `json:"total_win"`
	RTP        float64 `json:"rtp"` // 百分比
}

// Result 整次批量模拟的聚合结果
type Result struct {
	RunID          string         `json:"run_id"`
	Seed           int64          `json:"seed"`
	TotalSessions  int            `json:"total_sessions"`
	FailedSessions int            `json:"failed_sessions"`
	TotalSpins     int64          `json:"total_spins"`
	TotalBet       float64        `json:"total_bet"`
	TotalWin       float64        `json:"total_win"`
	OverallRTP     float64        `json:"overall_rtp"` // 百分比
	Duration       time.Duration  `json:"duration"`
	SessionsPerSec float64        `json:"sessions_per_sec"`
	Pairs          []*PairResult  `json:"pairs"`
	EndReasons     map[string]int `json:"end_reasons"`
	StartedAt      time.Time      `json:"started_at"`
}

// ToMap 转换为报告键值映射
func (r *Result) ToMap() map[string]interface{} {
	pairs := make([]interface{}, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		pairs = append(pairs, map[string]interface{}{
			"player_id":   p.PlayerID,
			"machine_id":  p.MachineID,
			"sessions":    p.Sessions,
			"total_spins": p.TotalSpins,
			"total_bet":   p.TotalBet,
			"total_win":   p.TotalWin,
			"rtp":         p.RTP,
		})
	}
	return map[string]interface{}{
		"run_id":           r.RunID,
		"seed":             r.Seed,
		"total_sessions":   r.TotalSessions,
		"failed_sessions":  r.FailedSessions,
		"total_spins":      r.TotalSpins,
		"total_bet":        r.TotalBet,
		"total_win":        r.TotalWin,
		"overall_rtp":      r.OverallRTP,
		"duration_seconds": r.Duration.Seconds(),
		"sessions_per_sec": r.SessionsPerSec,
		"pairs":            pairs,
		"end_reasons":      r.EndReasons,
		"started_at":       r.StartedAt,
	}
}

// Coordinator 批量模拟协调器
// 为每个会话铸造独立的玩家与机器实例，工作协程之间不共享可变状态
type Coordinator struct {
	machines   *registry.MachineRegistry
	players    *registry.PlayerRegistry
	cfg        *config.SimulatorConfig
	dispatcher *events.Dispatcher
	sink       session.OutputSink
	onProgress ProgressFunc
	log        *zap.Logger
}

// NewCoordinator 创建批量模拟协调器
// dispatcher和sink可以为nil，此时跳过事件分发与结果落盘
func NewCoordinator(machines *registry.MachineRegistry, players *registry.PlayerRegistry,
	cfg *config.SimulatorConfig, dispatcher *events.Dispatcher, sink session.OutputSink) *Coordinator {
	return &Coordinator{
		machines:   machines,
		players:    players,
		cfg:        cfg,
		dispatcher: dispatcher,
		sink:       sink,
		log:        logger.GetModuleLogger("simulation"),
	}
}

// OnProgress 设置进度回调
func (c *Coordinator) OnProgress(fn ProgressFunc) {
	c.onProgress = fn
}

// sessionTask 一个待运行会话的任务描述
type sessionTask struct {
	index     int
	playerID  string
	machineID string
}

// Run 并行运行全部玩家×机器配对的会话批次
func (c *Coordinator) Run() (*Result, error) {
	return c.RunWithID(uuid.New().String())
}

// RunWithID 以调用方指定的运行ID执行批次
func (c *Coordinator) RunWithID(runID string) (*Result, error) {
	playerIDs := c.players.IDs()
	machineIDs := c.machines.IDs()
	if len(playerIDs) == 0 || len(machineIDs) == 0 {
		return nil, errors.New(errors.ErrConfigValidate, "没有可用的玩家或机器配置")
	}

	sessionsPerPair := c.cfg.SessionsPerPair
	if sessionsPerPair <= 0 {
		sessionsPerPair = 1
	}

	baseSeed := c.cfg.Seed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	tasks := make([]sessionTask, 0, len(playerIDs)*len(machineIDs)*sessionsPerPair)
	for _, pid := range playerIDs {
		for _, mid := range machineIDs {
			for i := 0; i < sessionsPerPair; i++ {
				tasks = append(tasks, sessionTask{
					index:     len(tasks),
					playerID:  pid,
					machineID: mid,
				})
			}
		}
	}

	result := &Result{
		RunID:         runID,
		Seed:          baseSeed,
		TotalSessions: len(tasks),
		EndReasons:    make(map[string]int),
		StartedAt:     time.Now(),
	}

	c.log.Info("批量模拟开始",
		zap.String("run_id", runID),
		zap.Int("players", len(playerIDs)),
		zap.Int("machines", len(machineIDs)),
		zap.Int("sessions_per_pair", sessionsPerPair),
		zap.Int("total_sessions", len(tasks)),
		zap.Int64("seed", baseSeed))

	poolSize := c.cfg.MaxConcurrent
	if poolSize <= 0 {
		poolSize = 8
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSimulationAbort, "创建工作池失败")
	}
	defer pool.Release()

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		completed int
		failed    int
		pairStats = make(map[string]*PairResult)
	)

	start := time.Now()

	for _, task := range tasks {
		task := task
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			runResult, runErr := c.runSession(task, baseSeed)

			mu.Lock()
			defer mu.Unlock()

			completed++
			if runErr != nil {
				failed++
				c.log.Error("会话运行失败",
					zap.String("player_id", task.playerID),
					zap.String("machine_id", task.machineID),
					zap.Error(runErr))
			} else {
				c.accumulate(result, pairStats, task, runResult)
			}

			if c.onProgress != nil {
				c.onProgress(Progress{
					RunID:     runID,
					Completed: completed,
					Total:     len(tasks),
					Percent:   float64(completed) / float64(len(tasks)) * 100,
					Failed:    failed,
				})
			}
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			failed++
			mu.Unlock()
			c.log.Error("提交会话任务失败", zap.Error(submitErr))
		}
	}

	wg.Wait()

	result.FailedSessions = failed
	result.Duration = time.Since(start)
	if result.TotalBet > 0 {
		result.OverallRTP = result.TotalWin / result.TotalBet * 100
	}
	if result.Duration > 0 {
		result.SessionsPerSec = float64(result.TotalSessions-failed) / result.Duration.Seconds()
	}
	for _, pair := range pairStats {
		if pair.TotalBet > 0 {
			pair.RTP = pair.TotalWin / pair.TotalBet * 100
		}
		result.Pairs = append(result.Pairs, pair)
	}

	c.log.Info("批量模拟完成",
		zap.String("run_id", runID),
		zap.Int("total_sessions", result.TotalSessions),
		zap.Int("failed_sessions", failed),
		zap.Int64("total_spins", result.TotalSpins),
		zap.Float64("overall_rtp", result.OverallRTP),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// runSession 铸造独立实例并运行单个会话
func (c *Coordinator) runSession(task sessionTask, baseSeed int64) (*session.RunResult, error) {
	// 相同基础种子下任务序号决定实例种子，批次可复现
	seed := baseSeed + int64(task.index)

	m, err := c.machines.Mint(task.machineID, seed)
	if err != nil {
		return nil, err
	}
	p, err := c.players.Mint(task.playerID, seed)
	if err != nil {
		return nil, err
	}

	sessionID := fmt.Sprintf("%s_%s_%s", task.playerID, task.machineID, uuid.New().String()[:8])
	s := session.NewGamingSession(sessionID, p, m, c.dispatcher, c.sink)

	runner := session.NewSessionRunner(s, session.RunnerLimits{
		MaxSpins:          c.cfg.Runner.MaxSpins,
		MaxSimDuration:    c.cfg.Runner.MaxSimDuration,
		MaxPlayerDuration: c.cfg.Runner.MaxPlayerDuration,
	})
	return runner.Run()
}

// accumulate 把单个会话的结果并入运行总计（调用方持锁）
func (c *Coordinator) accumulate(result *Result, pairStats map[string]*PairResult, task sessionTask, rr *session.RunResult) {
	result.TotalSpins += rr.SpinCount
	result.EndReasons[rr.Reason]++

	bet := mapFloat(rr.Stats, "total_bet")
	win := mapFloat(rr.Stats, "total_win")
	result.TotalBet += bet
	result.TotalWin += win

	key := task.playerID + "|" + task.machineID
	pair, ok := pairStats[key]
	if !ok {
		pair = &PairResult{PlayerID: task.playerID, MachineID: task.machineID}
		pairStats[key] = pair
	}
	pair.Sessions++
	pair.TotalSpins += rr.SpinCount
	pair.TotalBet += bet
	pair.TotalWin += win
}

func mapFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
