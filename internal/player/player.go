package player

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/rng"
	"github.com/wfunc/slot-simulator/internal/session"
	"go.uber.org/zap"
)

// Player 无状态玩家
// 全部会话状态由GamingSession管理，玩家只持有配置和决策引擎
// RNG是会话级可变状态，实例不得跨会话共享
type Player struct {
	id         string
	instanceID string
	cfg        *PlayerConfig
	rng        rng.Strategy
	engine     DecisionEngine
	log        *zap.Logger
}

// NewPlayer 根据配置创建玩家
// 未知的决策引擎类型在此处立即失败，不延迟到首次使用
func NewPlayer(cfg *PlayerConfig, strategy rng.Strategy) (*Player, error) {
	engine, err := newDecisionEngine(cfg, strategy)
	if err != nil {
		return nil, err
	}

	p := &Player{
		id:         cfg.ID,
		instanceID: uuid.NewString(),
		cfg:        cfg,
		rng:        strategy,
		engine:     engine,
		log:        logger.GetModuleLogger("player").With(zap.String("player_id", cfg.ID)),
	}

	p.log.Debug("玩家初始化完成", zap.String("model_version", cfg.ModelVersion))
	return p, nil
}

// ID 返回玩家标识
func (p *Player) ID() string {
	return p.id
}

// InstanceID 返回实例标识
func (p *Player) InstanceID() string {
	return p.instanceID
}

// Currency 返回玩家使用的货币
func (p *Player) Currency() string {
	return p.cfg.Currency
}

// ActiveLines 返回启用的支付线数，≤0表示全部
func (p *Player) ActiveLines() int {
	return p.cfg.ActiveLines
}

// GenerateInitialBalance 根据配置生成初始余额
// std>0时按正态分布采样并钳制到[min, max]，否则直接使用均值
func (p *Player) GenerateInitialBalance() float64 {
	spec := p.cfg.InitialBalance

	if spec.Std > 0 && p.rng != nil {
		balance := p.rng.Normal(spec.Avg, spec.Std)
		if balance < spec.Min {
			balance = spec.Min
		}
		if balance > spec.Max {
			balance = spec.Max
		}
		return round2(balance)
	}

	return round2(spec.Avg)
}

// GenerateFirstBet 生成首次投注额
func (p *Player) GenerateFirstBet(balance float64) float64 {
	return p.engine.CalculateFirstBet(balance)
}

// Play 决定下一次投注额和延迟
// 投注额超过当前余额时返回-1，强制结束会话
func (p *Player) Play(machineID string, snap *session.Snapshot) (float64, time.Duration) {
	bet, delay := p.engine.Decide(machineID, snap)

	if bet > snap.CurrentBalance {
		p.log.Debug("投注额超过余额，结束会话",
			zap.Float64("bet", bet),
			zap.Float64("balance", snap.CurrentBalance),
		)
		return -1, 0
	}

	return bet, delay
}

// ShouldEndSession 决定是否结束会话
func (p *Player) ShouldEndSession(machineID string, snap *session.Snapshot) bool {
	if snap.CurrentBalance <= 0 {
		return true
	}
	return p.engine.ShouldEndSession(machineID, snap)
}

// ResetState 重置玩家状态以用于新会话
func (p *Player) ResetState(seed int64) {
	if p.rng != nil {
		p.rng.Seed(seed)
	}
}

// Info 返回玩家信息摘要
func (p *Player) Info() map[string]interface{} {
	return map[string]interface{}{
		"id":            p.id,
		"instance_id":   p.instanceID,
		"currency":      p.cfg.Currency,
		"model_version": p.cfg.ModelVersion,
	}
}

// round2 四舍五入到2位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
