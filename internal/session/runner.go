package session

import (
	"fmt"
	"time"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"go.uber.org/zap"
)

// 会话终止原因，互斥且先到先得
const (
	ReasonMaxSpins            = "max_spins_reached"
	ReasonMaxSimDuration      = "max_sim_duration_reached"
	ReasonMaxPlayerDuration   = "max_player_duration_reached"
	ReasonPlayerDecision      = "player_decision"
	ReasonPlayerZeroBet       = "player_zero_bet"
	ReasonInsufficientBalance = "insufficient_balance"
	ReasonErrorInSpin         = "error_in_spin"
)

// RunnerLimits 会话硬性终止限制，零值表示不限制
type RunnerLimits struct {
	MaxSpins          int64
	MaxSimDuration    time.Duration
	MaxPlayerDuration time.Duration
}

// RunResult 会话运行的最终结果
type RunResult struct {
	Reason      string                 `json:"reason"`
	SpinCount   int64                  `json:"spin_count"`
	PlayerTime  time.Duration          `json:"player_time"`
	SimDuration time.Duration          `json:"sim_duration"`
	Error       string                 `json:"error,omitempty"`
	Stats       map[string]interface{} `json:"stats"`
}

// SessionRunner 驱动单个会话从开始到结束
// 玩家决策延迟只累加到模拟的玩家时间，不真正休眠
type SessionRunner struct {
	session *GamingSession
	limits  RunnerLimits
	log     *zap.Logger
}

// NewSessionRunner 创建会话运行器
func NewSessionRunner(s *GamingSession, limits RunnerLimits) *SessionRunner {
	return &SessionRunner{
		session: s,
		limits:  limits,
		log: logger.GetModuleLogger("session").With(
			zap.String("session_id", s.ID),
		),
	}
}

// Run 执行会话主循环直到某个终止条件成立
// 旋转过程中的panic被捕获并转为error_in_spin终止，会话仍正常收尾
func (r *SessionRunner) Run() (*RunResult, error) {
	if err := r.session.Start(); err != nil {
		return nil, err
	}

	simStart := time.Now()
	result := &RunResult{}

	r.runLoop(result, simStart)

	if err := r.session.End(); err != nil {
		return nil, err
	}

	result.SimDuration = time.Since(simStart)
	result.Stats = r.session.Stats().ToMap()

	r.log.Info("会话运行完成",
		zap.String("reason", result.Reason),
		zap.Int64("spins", result.SpinCount),
		zap.Duration("player_time", result.PlayerTime),
		zap.Duration("sim_duration", result.SimDuration),
	)

	return result, nil
}

// runLoop 旋转主循环，终止原因写入result
func (r *SessionRunner) runLoop(result *RunResult, simStart time.Time) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("旋转过程panic", zap.Any("panic", rec))
			result.Reason = ReasonErrorInSpin
			result.Error = fmt.Sprintf("panic: %v", rec)
		}
	}()

	for {
		// 硬性终止条件优先检查
		if reason := r.checkTermination(result.SpinCount, result.PlayerTime, simStart); reason != "" {
			result.Reason = reason
			return
		}

		// 免费旋转自动执行，不消耗玩家决策时间
		if r.session.InFreeSpins() {
			freeCount, err := r.runFreeSpinsSequence()
			result.SpinCount += freeCount
			if err != nil {
				r.log.Warn("免费旋转序列出错", zap.Error(err))
				result.Reason = ReasonErrorInSpin
				result.Error = err.Error()
			}
			if result.Reason != "" {
				return
			}
			continue
		}

		snap := r.session.Snapshot()

		if r.session.Player().ShouldEndSession(r.session.Machine().ID, snap) {
			r.log.Debug("玩家决定结束会话", zap.Int64("spins", result.SpinCount))
			result.Reason = ReasonPlayerDecision
			return
		}

		bet, delay := r.session.Player().Play(r.session.Machine().ID, snap)
		if bet <= 0 {
			r.log.Debug("玩家投注为零，结束会话", zap.Int64("spins", result.SpinCount))
			result.Reason = ReasonPlayerZeroBet
			return
		}

		if _, err := r.session.ExecuteSpin(bet); err != nil {
			if errors.Is(err, errors.ErrInsufficientBalance) {
				result.Reason = ReasonInsufficientBalance
			} else {
				r.log.Warn("旋转出错", zap.Error(err))
				result.Reason = ReasonErrorInSpin
				result.Error = err.Error()
			}
			return
		}

		result.SpinCount++
		result.PlayerTime += delay
	}
}

// checkTermination 按固定优先级检查硬性终止条件
func (r *SessionRunner) checkTermination(spinCount int64, playerTime time.Duration, simStart time.Time) string {
	if r.limits.MaxSpins > 0 && spinCount >= r.limits.MaxSpins {
		return ReasonMaxSpins
	}
	if r.limits.MaxSimDuration > 0 && time.Since(simStart) >= r.limits.MaxSimDuration {
		return ReasonMaxSimDuration
	}
	if r.limits.MaxPlayerDuration > 0 && playerTime >= r.limits.MaxPlayerDuration {
		return ReasonMaxPlayerDuration
	}
	return ""
}

// runFreeSpinsSequence 连续执行免费旋转直到序列结束
func (r *SessionRunner) runFreeSpinsSequence() (int64, error) {
	var count int64

	r.log.Debug("开始免费旋转序列", zap.Int("remaining", r.session.FreeSpinsRemaining()))

	for r.session.InFreeSpins() && r.session.FreeSpinsRemaining() > 0 {
		// 投注额传0，免费旋转使用记录的基础投注
		if _, err := r.session.ExecuteSpin(0); err != nil {
			return count, err
		}
		count++
	}

	r.log.Debug("免费旋转序列完成", zap.Int64("count", count))
	return count, nil
}
