package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/registry"
	"github.com/wfunc/slot-simulator/internal/session"
)

// Router API路由器
type Router struct {
	engine   *gin.Engine
	hub      *ProgressHub
	machines *registry.MachineRegistry
	players  *registry.PlayerRegistry
	simHandler *SimulationHandler
	db       *gorm.DB
	log      *zap.Logger
}

// NewRouter 创建路由器
// db与sink可以为nil，对应的接口会返回数据库未启用错误
func NewRouter(machines *registry.MachineRegistry, players *registry.PlayerRegistry,
	cfg *config.SimulatorConfig, sink session.OutputSink, db *gorm.DB) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())

	hub := NewProgressHub()
	go hub.Run()

	router := &Router{
		engine:     engine,
		hub:        hub,
		machines:   machines,
		players:    players,
		simHandler: NewSimulationHandler(machines, players, cfg, hub, sink, db),
		db:         db,
		log:        logger.GetModuleLogger("api"),
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		machines := v1.Group("/machines")
		{
			machines.GET("", r.listMachines)
			machines.GET("/:id", r.getMachine)
			machines.GET("/:id/rtp", r.simHandler.EstimateRTP)
		}

		players := v1.Group("/players")
		{
			players.GET("", r.listPlayers)
			players.GET("/:id", r.getPlayer)
		}

		simulations := v1.Group("/simulations")
		{
			simulations.POST("", r.simHandler.Start)
			simulations.GET("", r.simHandler.List)
			simulations.GET("/:run_id", r.simHandler.Get)
			simulations.GET("/:run_id/sessions", r.simHandler.Sessions)
		}
	}

	// 进度推送
	r.engine.GET("/ws/progress", func(c *gin.Context) {
		r.hub.ServeWS(c.Writer, c.Request)
	})

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	dbStatus := "disabled"
	if r.db != nil {
		dbStatus = "connected"
		sqlDB, err := r.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":   "unhealthy",
				"database": "unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"database":    dbStatus,
		"machines":    len(r.machines.IDs()),
		"players":     len(r.players.IDs()),
		"subscribers": r.hub.ClientCount(),
	})
}

// listMachines 列出已注册的机器
func (r *Router) listMachines(c *gin.Context) {
	ids := r.machines.IDs()
	infos := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		m, err := r.machines.Mint(id, 0)
		if err != nil {
			continue
		}
		infos = append(infos, m.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    infos,
	})
}

// getMachine 查询单台机器信息
func (r *Router) getMachine(c *gin.Context) {
	id := c.Param("id")
	m, err := r.machines.Mint(id, 0)
	if err != nil {
		respondError(c, errors.Wrapf(err, errors.ErrNotFound, "机器不存在: %s", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    m.Info(),
	})
}

// listPlayers 列出已注册的玩家
func (r *Router) listPlayers(c *gin.Context) {
	ids := r.players.IDs()
	infos := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		p, err := r.players.Mint(id, 0)
		if err != nil {
			continue
		}
		infos = append(infos, p.Info())
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    infos,
	})
}

// getPlayer 查询单个玩家信息
func (r *Router) getPlayer(c *gin.Context) {
	id := c.Param("id")
	p, err := r.players.Mint(id, 0)
	if err != nil {
		respondError(c, errors.Wrapf(err, errors.ErrNotFound, "玩家不存在: %s", id))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    p.Info(),
	})
}

// Run 运行HTTP服务
func (r *Router) Run(addr string) error {
	r.log.Info("API服务启动", zap.String("address", addr))
	return r.engine.Run(addr)
}

// Hub 返回进度推送中心
func (r *Router) Hub() *ProgressHub {
	return r.hub
}

// Engine 返回Gin引擎（用于测试和服务托管）
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// respondError 按错误码返回统一的错误响应
func respondError(c *gin.Context, err *errors.AppError) {
	c.JSON(err.HTTPStatus(), errors.NewErrorResponse(err, c.GetHeader("X-Request-ID")))
}

func intQuery(c *gin.Context, key string, def int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil {
		return v
	}
	return def
}

func int64Query(c *gin.Context, key string, def int64) int64 {
	if v, err := strconv.ParseInt(c.Query(key), 10, 64); err == nil {
		return v
	}
	return def
}

func floatQuery(c *gin.Context, key string, def float64) float64 {
	if v, err := strconv.ParseFloat(c.Query(key), 64); err == nil {
		return v
	}
	return def
}
