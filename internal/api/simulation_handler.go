package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/events"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/machine"
	"github.com/wfunc/slot-simulator/internal/models"
	"github.com/wfunc/slot-simulator/internal/registry"
	"github.com/wfunc/slot-simulator/internal/repository"
	"github.com/wfunc/slot-simulator/internal/session"
	"github.com/wfunc/slot-simulator/internal/simulation"
)

// RunState 一次模拟运行的实时状态
type RunState struct {
	RunID     string               `json:"run_id"`
	Status    string               `json:"status"` // running, completed, failed
	Progress  *simulation.Progress `json:"progress,omitempty"`
	Result    *simulation.Result   `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	StartedAt time.Time            `json:"started_at"`
}

// StartRequest 启动模拟的请求参数，零值字段沿用配置文件
type StartRequest struct {
	SessionsPerPair int   `json:"sessions_per_pair"`
	Seed            int64 `json:"seed"`
	MaxSpins        int64 `json:"max_spins"`
}

// SimulationHandler 模拟运行API处理器
type SimulationHandler struct {
	machines *registry.MachineRegistry
	players  *registry.PlayerRegistry
	cfg      *config.SimulatorConfig
	hub      *ProgressHub
	sink     session.OutputSink
	db       *gorm.DB

	mu   sync.RWMutex
	runs map[string]*RunState

	// RTP估算复用的机器实例池，按机器ID惰性创建
	poolMu sync.Mutex
	pools  map[string]*registry.Pool[*machine.SlotMachine]

	log *zap.Logger
}

// NewSimulationHandler 创建模拟运行处理器
// sink与db可以为nil，此时结果只保留在内存中
func NewSimulationHandler(machines *registry.MachineRegistry, players *registry.PlayerRegistry,
	cfg *config.SimulatorConfig, hub *ProgressHub, sink session.OutputSink, db *gorm.DB) *SimulationHandler {
	return &SimulationHandler{
		machines: machines,
		players:  players,
		cfg:      cfg,
		hub:      hub,
		sink:     sink,
		db:       db,
		runs:     make(map[string]*RunState),
		pools:    make(map[string]*registry.Pool[*machine.SlotMachine]),
		log:      logger.GetModuleLogger("api"),
	}
}

// Start 启动一次批量模拟
func (h *SimulationHandler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, errors.Wrap(err, errors.ErrInvalidParam, "请求体解析失败"))
			return
		}
	}

	// 每次运行使用独立的配置副本
	cfg := *h.cfg
	if req.SessionsPerPair > 0 {
		cfg.SessionsPerPair = req.SessionsPerPair
	}
	if req.Seed != 0 {
		cfg.Seed = req.Seed
	}
	if req.MaxSpins > 0 {
		cfg.Runner.MaxSpins = req.MaxSpins
	}

	// 生命周期事件推送到WebSocket订阅者，SpinCompleted太密集不转发
	dispatcher := events.NewDispatcher()
	for _, et := range []events.EventType{
		events.SessionStarted, events.SessionEnded,
		events.FreeSpinsTriggered, events.BigWin,
	} {
		dispatcher.Subscribe(et, func(e events.Event) {
			h.hub.Broadcast(string(e.Type), e)
		})
	}

	coord := simulation.NewCoordinator(h.machines, h.players, &cfg, dispatcher, h.sink)

	runID := uuid.New().String()
	state := h.newRunState(runID)
	go h.execute(coord, &cfg, runID, state)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data":    state,
	})
}

// execute 后台运行模拟并维护状态
func (h *SimulationHandler) execute(coord *simulation.Coordinator, cfg *config.SimulatorConfig, runID string, state *RunState) {
	h.hub.Broadcast(MessageTypeRunStarted, gin.H{"run_id": runID})

	coord.OnProgress(func(p simulation.Progress) {
		progress := p
		h.mu.Lock()
		state.Progress = &progress
		h.mu.Unlock()

		h.hub.Broadcast(MessageTypeProgress, progress)
	})

	result, err := coord.RunWithID(runID)

	h.mu.Lock()
	if err != nil {
		state.Status = "failed"
		state.Error = err.Error()
	} else {
		state.Status = "completed"
		state.Result = result
	}
	h.mu.Unlock()

	if err != nil {
		h.log.Error("模拟运行失败", zap.Error(err))
		h.hub.Broadcast(MessageTypeRunFailed, gin.H{"error": err.Error()})
		return
	}

	h.hub.Broadcast(MessageTypeRunCompleted, gin.H{
		"run_id":      result.RunID,
		"overall_rtp": result.OverallRTP,
		"duration":    result.Duration.Seconds(),
	})

	if h.db != nil {
		h.persistRun(cfg, result)
	}
}

// newRunState 登记一个新的运行状态
func (h *SimulationHandler) newRunState(runID string) *RunState {
	state := &RunState{
		RunID:     runID,
		Status:    "running",
		StartedAt: time.Now(),
	}
	h.mu.Lock()
	h.runs[runID] = state
	h.mu.Unlock()
	return state
}

// persistRun 将运行结果写入数据库
func (h *SimulationHandler) persistRun(cfg *config.SimulatorConfig, result *simulation.Result) {
	repo := repository.NewSimulationRunRepository(h.db)
	ctx := context.Background()

	run := &models.SimulationRun{
		RunID:           result.RunID,
		Seed:            result.Seed,
		MachineCount:    len(h.machines.IDs()),
		PlayerCount:     len(h.players.IDs()),
		SessionsPerPair: cfg.SessionsPerPair,
		TotalSessions:   result.TotalSessions,
		Status:          "running",
		StartedAt:       result.StartedAt,
	}
	if err := repo.Create(ctx, run); err != nil {
		h.log.Error("写入运行记录失败", zap.Error(err))
		return
	}
	if err := repo.Complete(ctx, result.RunID, result.TotalSpins,
		result.TotalBet, result.TotalWin, result.OverallRTP); err != nil {
		h.log.Error("更新运行记录失败", zap.Error(err))
	}
}

// List 列出所有运行状态
func (h *SimulationHandler) List(c *gin.Context) {
	h.mu.RLock()
	states := make([]*RunState, 0, len(h.runs))
	for _, s := range h.runs {
		states = append(states, s)
	}
	h.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    states,
	})
}

// Get 查询单次运行状态
func (h *SimulationHandler) Get(c *gin.Context) {
	runID := c.Param("run_id")

	h.mu.RLock()
	state, ok := h.runs[runID]
	h.mu.RUnlock()

	if !ok {
		respondError(c, errors.Newf(errors.ErrNotFound, "运行不存在: %s", runID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    state,
	})
}

// Sessions 查询一次运行的会话摘要（需要数据库）
func (h *SimulationHandler) Sessions(c *gin.Context) {
	if h.db == nil {
		respondError(c, errors.New(errors.ErrDatabaseConnect, "数据库未启用"))
		return
	}

	runID := c.Param("run_id")
	p := repository.NewPagination(
		intQuery(c, "page", 1),
		intQuery(c, "page_size", 20),
	)

	repo := repository.NewSessionSummaryRepository(h.db)
	summaries, err := repo.FindByRunID(c.Request.Context(), runID, p)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrDatabaseQuery))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summaries,
		"pagination": gin.H{
			"page":      p.Page,
			"page_size": p.PageSize,
			"total":     p.Total,
		},
	})
}

// EstimateRTP 机器RTP蒙特卡洛估算
func (h *SimulationHandler) EstimateRTP(c *gin.Context) {
	machineID := c.Param("id")

	spins := int64Query(c, "spins", 100000)
	bet := floatQuery(c, "bet", 1.0)
	activeLines := intQuery(c, "lines", 0)

	lease, appErr := h.leaseMachine(machineID)
	if appErr != nil {
		respondError(c, appErr)
		return
	}
	defer lease.Release()

	result, err := simulation.EstimateRTP(lease.Value(), spins, bet, activeLines)
	if err != nil {
		respondError(c, errors.Wrap(err, errors.ErrSimulationAbort))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// leaseMachine 从实例池租借机器实例，池按机器ID惰性创建并预填充
func (h *SimulationHandler) leaseMachine(machineID string) (*registry.Lease[*machine.SlotMachine], *errors.AppError) {
	h.poolMu.Lock()
	pool, ok := h.pools[machineID]
	if !ok {
		size := h.cfg.Pool.Size
		if size <= 0 {
			size = 1
		}
		seed := h.cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		pool = registry.NewPool[*machine.SlotMachine](size)
		for i := 0; i < size; i++ {
			m, err := h.machines.Mint(machineID, seed+int64(i))
			if err != nil {
				h.poolMu.Unlock()
				return nil, errors.Wrapf(err, errors.ErrNotFound, "机器不存在: %s", machineID)
			}
			if putErr := pool.Put(m); putErr != nil {
				break
			}
		}
		h.pools[machineID] = pool
	}
	h.poolMu.Unlock()

	timeout := h.cfg.Pool.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	lease, err := pool.Acquire(timeout)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrPoolExhausted, "机器实例池繁忙: %s", machineID)
	}
	return lease, nil
}
