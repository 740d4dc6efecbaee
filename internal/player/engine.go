package player

import (
	"time"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/rng"
	"github.com/wfunc/slot-simulator/internal/session"
)

// 决策引擎类型，封闭集合：未知类型在配置加载时立即失败
const (
	EngineRandom = "random"
	EngineFixed  = "fixed"
)

// DecisionEngine 决策引擎接口
type DecisionEngine interface {
	// Decide 决定下一次投注额和决策延迟
	Decide(machineID string, snap *session.Snapshot) (bet float64, delay time.Duration)
	// ShouldEndSession 决定是否结束会话
	ShouldEndSession(machineID string, snap *session.Snapshot) bool
	// CalculateFirstBet 根据余额计算首次投注额
	CalculateFirstBet(balance float64) float64
}

// newDecisionEngine 按配置的模型版本创建决策引擎
func newDecisionEngine(cfg *PlayerConfig, strategy rng.Strategy) (DecisionEngine, error) {
	switch cfg.ModelVersion {
	case EngineRandom:
		return newRandomEngine(&cfg.RandomConfig, strategy), nil
	case EngineFixed:
		return newFixedEngine(&cfg.FixedConfig), nil
	default:
		return nil, errors.Newf(errors.ErrUnknownEngine, "模型版本: %s", cfg.ModelVersion)
	}
}

// RandomEngine 随机决策引擎
// 从可用投注中随机选取，延迟均匀分布，按配置概率随机结束会话
type RandomEngine struct {
	cfg *RandomEngineConfig
	rng rng.Strategy
}

func newRandomEngine(cfg *RandomEngineConfig, strategy rng.Strategy) *RandomEngine {
	return &RandomEngine{cfg: cfg, rng: strategy}
}

// Decide 随机选取投注额和延迟
func (e *RandomEngine) Decide(machineID string, snap *session.Snapshot) (float64, time.Duration) {
	bets := snap.AvailableBets
	if len(bets) == 0 {
		bets = []float64{1.0}
	}
	bet := bets[e.rng.GetRandomInt(0, len(bets)-1)]

	delaySec := e.cfg.MinDelay + e.rng.GetRandomFloat()*(e.cfg.MaxDelay-e.cfg.MinDelay)
	return bet, time.Duration(delaySec * float64(time.Second))
}

// ShouldEndSession 结束条件：余额耗尽或触及止损线、时长或旋转数超限、随机退出
func (e *RandomEngine) ShouldEndSession(machineID string, snap *session.Snapshot) bool {
	if snap.CurrentBalance <= 0 {
		return true
	}
	if e.cfg.StopLossBalance > 0 && snap.CurrentBalance < e.cfg.StopLossBalance {
		return true
	}
	if snap.Duration.Seconds() > e.cfg.MaxSessionDuration {
		return true
	}
	if snap.TotalSpins >= e.cfg.MaxSpinsPerSession {
		return true
	}
	if e.cfg.EndProbability > 0 && e.rng.GetRandomFloat() < e.cfg.EndProbability {
		return true
	}
	return false
}

// CalculateFirstBet 首次投注默认为余额的1%，上限1.0
func (e *RandomEngine) CalculateFirstBet(balance float64) float64 {
	bet := balance * 0.01
	if bet > 1.0 {
		bet = 1.0
	}
	if bet <= 0 {
		bet = 1.0
	}
	return bet
}

// FixedEngine 固定决策引擎
// 固定投注额和延迟，达到旋转上限后结束，用于可重现的RTP基准
type FixedEngine struct {
	cfg *FixedEngineConfig
}

func newFixedEngine(cfg *FixedEngineConfig) *FixedEngine {
	return &FixedEngine{cfg: cfg}
}

// Decide 返回固定的投注额和延迟
func (e *FixedEngine) Decide(machineID string, snap *session.Snapshot) (float64, time.Duration) {
	return e.cfg.Bet, time.Duration(e.cfg.Delay * float64(time.Second))
}

// ShouldEndSession 余额耗尽或达到旋转上限时结束
func (e *FixedEngine) ShouldEndSession(machineID string, snap *session.Snapshot) bool {
	if snap.CurrentBalance <= 0 {
		return true
	}
	return snap.TotalSpins >= e.cfg.MaxSpins
}

// CalculateFirstBet 返回固定投注额
func (e *FixedEngine) CalculateFirstBet(balance float64) float64 {
	return e.cfg.Bet
}
