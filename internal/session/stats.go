package session

import "time"

// SessionStats 会话运行统计
// 仅由所属会话的旋转步骤修改，对外只暴露只读快照
type SessionStats struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	MachineID string `json:"machine_id"`
	Active    bool   `json:"active"`

	TotalSpins     int64         `json:"total_spins"`
	Duration       time.Duration `json:"duration"`
	WinCount       int64         `json:"win_count"`
	WinRate        float64       `json:"win_rate"`
	TotalBet       float64       `json:"total_bet"`
	TotalWin       float64       `json:"total_win"`
	TotalProfit    float64       `json:"total_profit"`
	BaseGameWin    float64       `json:"base_game_win"`
	FreeGameWin    float64       `json:"free_game_win"`
	ReturnToPlayer float64       `json:"return_to_player"`
	BonusTriggered bool          `json:"bonus_triggered"`
	FreeSpinsCount int64         `json:"free_spins_count"`
	BigWinCount    int64         `json:"big_win_count"`
	StartBalance   float64       `json:"start_balance"`
	EndBalance     float64       `json:"end_balance"`
	BalanceChange  float64       `json:"balance_change"`
}

// NewSessionStats 创建会话统计
func NewSessionStats(sessionID, playerID, machineID string) *SessionStats {
	return &SessionStats{
		SessionID: sessionID,
		PlayerID:  playerID,
		MachineID: machineID,
	}
}

// UpdateSpin 累计单次旋转的统计数据
// countBet为false时投注额不计入total_bet（免费旋转由触发旋转预先支付）
func (s *SessionStats) UpdateSpin(bet, payout float64, inFreeSpins, bigWin bool, countBet bool) {
	s.TotalSpins++
	if countBet {
		s.TotalBet += bet
	}
	s.TotalWin += payout
	s.TotalProfit = s.TotalWin - s.TotalBet

	if inFreeSpins {
		s.FreeSpinsCount++
		s.FreeGameWin += payout
	} else {
		s.BaseGameWin += payout
	}

	if payout > 0 {
		s.WinCount++
	}
	if s.TotalSpins > 0 {
		s.WinRate = float64(s.WinCount) / float64(s.TotalSpins)
	}
	if s.TotalBet > 0 {
		s.ReturnToPlayer = s.TotalWin / s.TotalBet
	}

	if bigWin {
		s.BigWinCount++
	}
}

// ToMap 转换为摘要键值映射，键名与各统计字段一一对应
func (s *SessionStats) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"session_id":       s.SessionID,
		"player_id":        s.PlayerID,
		"machine_id":       s.MachineID,
		"active":           s.Active,
		"total_spins":      s.TotalSpins,
		"duration":         s.Duration.Seconds(),
		"win_count":        s.WinCount,
		"win_rate":         s.WinRate,
		"total_bet":        s.TotalBet,
		"total_win":        s.TotalWin,
		"total_profit":     s.TotalProfit,
		"base_game_win":    s.BaseGameWin,
		"free_game_win":    s.FreeGameWin,
		"return_to_player": s.ReturnToPlayer,
		"bonus_triggered":  s.BonusTriggered,
		"free_spins_count": s.FreeSpinsCount,
		"big_win_count":    s.BigWinCount,
		"start_balance":    s.StartBalance,
		"end_balance":      s.EndBalance,
		"balance_change":   s.BalanceChange,
	}
}
