package session

import (
	"time"

	"github.com/wfunc/slot-simulator/internal/machine"
)

// Player 玩家决策策略接口
// 玩家本身无状态，全部会话状态通过快照传入
type Player interface {
	// ID 返回玩家标识
	ID() string
	// Currency 返回玩家使用的货币
	Currency() string
	// ActiveLines 返回启用的支付线数，≤0表示全部
	ActiveLines() int
	// GenerateInitialBalance 生成会话初始余额
	GenerateInitialBalance() float64
	// GenerateFirstBet 根据余额生成首次投注额
	GenerateFirstBet(balance float64) float64
	// Play 决定下一次投注额和决策延迟
	Play(machineID string, snap *Snapshot) (bet float64, delay time.Duration)
	// ShouldEndSession 决定是否主动结束会话
	ShouldEndSession(machineID string, snap *Snapshot) bool
}

// OutputSink 会话输出接口
// 仅在会话结束时调用，不在旋转热路径上
type OutputSink interface {
	// WriteSessionSummary 写入会话统计摘要
	WriteSessionSummary(sessionID string, summary map[string]interface{}) error
	// WriteSpinHistory 写入完整的旋转历史
	WriteSpinHistory(sessionID string, spins []*SpinResult) error
	// ShouldRecordSpins 是否记录旋转明细
	ShouldRecordSpins() bool
}

// SpinResult 单次旋转的不可变结果记录
type SpinResult struct {
	SessionID          string            `json:"session_id"`
	SpinNumber         int64             `json:"spin_number"`
	Bet                float64           `json:"bet"`
	Payout             float64           `json:"payout"`
	Profit             float64           `json:"profit"`
	Odds               float64           `json:"odds"`
	BalanceBefore      float64           `json:"balance_before"`
	BalanceAfter       float64           `json:"balance_after"`
	Grid               []int             `json:"result_grid"`
	InFreeSpins        bool              `json:"in_free_spins"`
	FreeSpinsTriggered bool              `json:"free_spins_triggered"`
	FreeSpinsRemaining int               `json:"free_spins_remaining"`
	FreeSpinsBaseBet   float64           `json:"free_spins_base_bet"`
	LineWins           []float64         `json:"line_wins"`
	LineWinsInfo       []machine.LineWin `json:"line_wins_info"`
	ScatterCount       int               `json:"scatter_count"`
	ScatterWin         float64           `json:"scatter_win"`
	Streak             int               `json:"streak"`
	BigWin             bool              `json:"big_win"`
}

// Snapshot 供玩家决策的会话快照
type Snapshot struct {
	SessionID          string        `json:"session_id"`
	MachineID          string        `json:"machine_id"`
	StartTime          time.Time     `json:"start_time"`
	CurrentTime        time.Time     `json:"current_time"`
	Duration           time.Duration `json:"duration"`
	StartBalance       float64       `json:"start_balance"`
	CurrentBalance     float64       `json:"current_balance"`
	TotalSpins         int64         `json:"total_spins"`
	WinCount           int64         `json:"win_count"`
	TotalBet           float64       `json:"total_bet"`
	TotalWin           float64       `json:"total_win"`
	TotalProfit        float64       `json:"total_profit"`
	AvailableBets      []float64     `json:"available_bets"`
	Currency           string        `json:"currency"`
	InFreeSpins        bool          `json:"in_free_spins"`
	FreeSpinsRemaining int           `json:"free_spins_remaining"`
	BonusTriggered     bool          `json:"bonus_triggered"`
	RecentResults      []*SpinResult `json:"results"`
}
