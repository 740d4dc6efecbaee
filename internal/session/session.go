package session

import (
	"time"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/events"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/machine"
	"go.uber.org/zap"
)

// State 会话状态
type State int

const (
	StateNotStarted State = iota
	StateActive
	StateFreeSpins
	StateEnded
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateActive:
		return "active"
	case StateFreeSpins:
		return "free_spins"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	// NumTrackBack 决策快照中携带的最近旋转结果数
	NumTrackBack = 10
	// BigWinThreshold 大奖赔率阈值
	BigWinThreshold = 10.0
)

// GamingSession 一次玩家-机器配对的游戏会话
// 状态机：NotStarted → Active ⇄ FreeSpins → Ended
// 余额只通过ExecuteSpin的扣除/入账变化，机器和玩家实例不得被两个会话并发使用
type GamingSession struct {
	ID      string
	player  Player
	machine *machine.SlotMachine

	dispatcher *events.Dispatcher
	output     OutputSink
	log        *zap.Logger

	state        State
	simStartTime time.Time
	simEndTime   time.Time

	balance        float64
	initialBalance float64
	firstBet       float64

	freeSpinsRemaining int
	freeSpinsBaseBet   float64

	availableBets []float64
	spins         []*SpinResult
	stats         *SessionStats
}

// NewGamingSession 创建游戏会话
// dispatcher和output均可为nil
func NewGamingSession(id string, player Player, m *machine.SlotMachine, dispatcher *events.Dispatcher, output OutputSink) *GamingSession {
	s := &GamingSession{
		ID:         id,
		player:     player,
		machine:    m,
		dispatcher: dispatcher,
		output:     output,
		state:      StateNotStarted,
		stats:      NewSessionStats(id, player.ID(), m.ID),
		log: logger.GetModuleLogger("session").With(
			zap.String("session_id", id),
			zap.String("player_id", player.ID()),
			zap.String("machine_id", m.ID),
		),
	}

	s.availableBets = m.AvailableBets(player.Currency())
	return s
}

// Start 启动会话
// 只能从NotStarted状态调用；生成初始余额和首次投注额
func (s *GamingSession) Start() error {
	if s.state != StateNotStarted {
		return errors.Newf(errors.ErrSessionNotActive, "当前状态: %s", s.state)
	}

	s.simStartTime = time.Now()
	s.state = StateActive

	s.initialBalance = s.player.GenerateInitialBalance()
	s.balance = s.initialBalance
	s.firstBet = s.player.GenerateFirstBet(s.balance)

	s.stats.Active = true
	s.stats.StartBalance = s.initialBalance

	s.log.Info("会话开始",
		zap.Float64("start_balance", s.initialBalance),
		zap.Float64("first_bet", s.firstBet),
	)

	s.dispatch(events.SessionStarted, map[string]interface{}{
		"start_balance": s.initialBalance,
		"first_bet":     s.firstBet,
	})

	return nil
}

// ExecuteSpin 执行一次旋转
// 免费旋转中忽略传入的投注额，使用触发时记录的基础投注
// 预期的会话结束条件（无效投注、余额不足）通过错误码返回，不视为故障
func (s *GamingSession) ExecuteSpin(betAmount float64) (*SpinResult, error) {
	if s.state != StateActive && s.state != StateFreeSpins {
		s.log.Warn("在非活跃会话上执行旋转", zap.String("state", s.state.String()))
		return nil, errors.Newf(errors.ErrSessionNotActive, "当前状态: %s", s.state)
	}

	inFree := s.state == StateFreeSpins
	countBet := !inFree

	if inFree {
		if s.freeSpinsRemaining <= 0 {
			return nil, errors.New(errors.ErrNotInFreeSpins)
		}
		// 免费旋转使用触发时的基础投注
		betAmount = s.freeSpinsBaseBet
		if betAmount <= 0 {
			return nil, errors.Newf(errors.ErrInvalidBet, "免费旋转基础投注: %f", betAmount)
		}
	} else {
		if betAmount <= 0 {
			s.log.Warn("无效的投注金额", zap.Float64("bet", betAmount))
			return nil, errors.Newf(errors.ErrInvalidBet, "投注额: %f", betAmount)
		}
		if betAmount > s.balance {
			s.log.Warn("余额不足",
				zap.Float64("bet", betAmount),
				zap.Float64("balance", s.balance),
			)
			return nil, errors.Newf(errors.ErrInsufficientBalance, "余额 %f < 投注 %f", s.balance, betAmount)
		}
	}

	prevBalance := s.balance
	if countBet {
		s.balance -= betAmount
	}

	grid, triggersFree, freeRemaining, err := s.machine.Spin(inFree, s.freeSpinsRemaining)
	if err != nil {
		return nil, err
	}

	winData, err := s.machine.EvaluateWin(grid, betAmount, inFree, s.player.ActiveLines())
	if err != nil {
		return nil, err
	}

	winAmount := winData.TotalWin
	s.balance += winAmount

	winOdds := 0.0
	if betAmount > 0 {
		winOdds = winAmount / betAmount
	}
	isBigWin := winOdds >= BigWinThreshold

	s.stats.UpdateSpin(betAmount, winAmount, inFree, isBigWin, countBet)

	// 免费旋转触发与状态转换
	if triggersFree && !inFree {
		s.state = StateFreeSpins
		s.freeSpinsRemaining = freeRemaining
		s.freeSpinsBaseBet = betAmount
		s.stats.BonusTriggered = true
		s.log.Info("触发免费旋转",
			zap.Int("free_spins", freeRemaining),
			zap.Float64("base_bet", betAmount),
		)
		s.dispatch(events.FreeSpinsTriggered, map[string]interface{}{
			"free_spins_awarded": freeRemaining,
			"base_bet":           betAmount,
		})
	} else if inFree {
		s.freeSpinsRemaining = freeRemaining
		if s.freeSpinsRemaining <= 0 {
			s.state = StateActive
			s.freeSpinsBaseBet = 0
			s.log.Info("免费旋转序列结束")
		}
	}

	streak := s.computeStreak(winAmount > 0)

	result := &SpinResult{
		SessionID:          s.ID,
		SpinNumber:         s.stats.TotalSpins,
		Bet:                betAmount,
		Payout:             winAmount,
		Profit:             winAmount - betAmount,
		Odds:               winOdds,
		BalanceBefore:      prevBalance,
		BalanceAfter:       s.balance,
		Grid:               grid,
		InFreeSpins:        s.state == StateFreeSpins,
		FreeSpinsTriggered: triggersFree,
		FreeSpinsRemaining: freeRemaining,
		FreeSpinsBaseBet:   s.freeSpinsBaseBet,
		LineWins:           winData.LineWins,
		LineWinsInfo:       winData.LineWinsInfo,
		ScatterCount:       winData.ScatterCount,
		ScatterWin:         winData.ScatterWin,
		Streak:             streak,
		BigWin:             isBigWin,
	}
	s.spins = append(s.spins, result)

	logger.LogSpin(s.ID, result.SpinNumber, betAmount, winAmount, result.InFreeSpins)

	if isBigWin {
		s.dispatch(events.BigWin, map[string]interface{}{
			"payout": winAmount,
			"odds":   winOdds,
		})
	}
	s.dispatch(events.SpinCompleted, map[string]interface{}{
		"spin_number": result.SpinNumber,
		"bet":         betAmount,
		"payout":      winAmount,
	})

	return result, nil
}

// computeStreak 计算有符号连胜/连败计数
// 与上一次结果同向则在其基础上±1，反向或首次旋转则重置为±1
func (s *GamingSession) computeStreak(currWin bool) int {
	if len(s.spins) == 0 {
		if currWin {
			return 1
		}
		return -1
	}

	prev := s.spins[len(s.spins)-1]
	prevWin := prev.Payout > 0
	if currWin == prevWin {
		if currWin {
			return prev.Streak + 1
		}
		return prev.Streak - 1
	}
	if currWin {
		return 1
	}
	return -1
}

// End 结束会话并冻结统计
// 只能从活跃状态调用；触发输出写入和结束事件
func (s *GamingSession) End() error {
	if s.state != StateActive && s.state != StateFreeSpins {
		s.log.Warn("结束非活跃会话", zap.String("state", s.state.String()))
		return errors.Newf(errors.ErrSessionEnded, "当前状态: %s", s.state)
	}

	s.simEndTime = time.Now()
	s.state = StateEnded

	s.stats.Active = false
	s.stats.Duration = s.simEndTime.Sub(s.simStartTime)
	s.stats.EndBalance = s.balance
	s.stats.BalanceChange = s.balance - s.stats.StartBalance

	s.dispatch(events.SessionEnded, s.stats.ToMap())

	s.writeSessionData()

	s.log.Info("会话结束",
		zap.Int64("total_spins", s.stats.TotalSpins),
		zap.Float64("total_bet", s.stats.TotalBet),
		zap.Float64("total_win", s.stats.TotalWin),
		zap.Float64("end_balance", s.balance),
	)

	return nil
}

// writeSessionData 会话结束时一次性写入输出
func (s *GamingSession) writeSessionData() {
	if s.output == nil {
		return
	}

	if err := s.output.WriteSessionSummary(s.ID, s.stats.ToMap()); err != nil {
		s.log.Error("写入会话摘要失败", zap.Error(err))
	}

	if s.output.ShouldRecordSpins() && len(s.spins) > 0 {
		if err := s.output.WriteSpinHistory(s.ID, s.spins); err != nil {
			s.log.Error("写入旋转历史失败", zap.Error(err))
		}
	}
}

// Snapshot 生成供玩家决策的会话快照
func (s *GamingSession) Snapshot() *Snapshot {
	now := time.Now()

	snap := &Snapshot{
		SessionID:          s.ID,
		MachineID:          s.machine.ID,
		StartTime:          s.simStartTime,
		CurrentTime:        now,
		StartBalance:       s.stats.StartBalance,
		CurrentBalance:     s.balance,
		TotalSpins:         s.stats.TotalSpins,
		WinCount:           s.stats.WinCount,
		TotalBet:           s.stats.TotalBet,
		TotalWin:           s.stats.TotalWin,
		TotalProfit:        s.stats.TotalWin - s.stats.TotalBet,
		AvailableBets:      s.availableBets,
		Currency:           s.player.Currency(),
		InFreeSpins:        s.state == StateFreeSpins,
		FreeSpinsRemaining: s.freeSpinsRemaining,
		BonusTriggered:     s.stats.BonusTriggered,
	}
	if !s.simStartTime.IsZero() {
		snap.Duration = now.Sub(s.simStartTime)
	}

	// 最近NumTrackBack次旋转结果
	start := len(s.spins) - NumTrackBack
	if start < 0 {
		start = 0
	}
	snap.RecentResults = s.spins[start:]

	return snap
}

// dispatch 派发会话事件
func (s *GamingSession) dispatch(eventType events.EventType, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(events.Event{
		Type:      eventType,
		SessionID: s.ID,
		PlayerID:  s.player.ID(),
		MachineID: s.machine.ID,
		Payload:   payload,
	})
}

// State 返回当前状态
func (s *GamingSession) State() State {
	return s.state
}

// InFreeSpins 是否处于免费旋转状态
func (s *GamingSession) InFreeSpins() bool {
	return s.state == StateFreeSpins
}

// FreeSpinsRemaining 返回剩余免费旋转次数
func (s *GamingSession) FreeSpinsRemaining() int {
	return s.freeSpinsRemaining
}

// Balance 返回当前余额
func (s *GamingSession) Balance() float64 {
	return s.balance
}

// FirstBet 返回会话开始时生成的首次投注额
func (s *GamingSession) FirstBet() float64 {
	return s.firstBet
}

// Stats 返回会话统计
func (s *GamingSession) Stats() *SessionStats {
	return s.stats
}

// History 返回旋转历史（只读）
func (s *GamingSession) History() []*SpinResult {
	return s.spins
}

// Player 返回玩家
func (s *GamingSession) Player() Player {
	return s.player
}

// Machine 返回机器
func (s *GamingSession) Machine() *machine.SlotMachine {
	return s.machine
}
