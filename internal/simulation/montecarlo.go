package simulation

import (
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/machine"
)

// MonteCarloResult 蒙特卡洛RTP估算结果
type MonteCarloResult struct {
	MachineID       string        `json:"machine_id"`
	Spins           int64         `json:"spins"`
	Bet             float64       `json:"bet"`
	ActiveLines     int           `json:"active_lines"`
	TotalBet        float64       `json:"total_bet"`
	TotalWin        float64       `json:"total_win"`
	RTP             float64       `json:"rtp"` // 百分比
	HitCount        int64         `json:"hit_count"`
	HitRate         float64       `json:"hit_rate"`
	ScatterHits     int64         `json:"scatter_hits"`
	ScatterRate     float64       `json:"scatter_rate"`
	FreeSpinsPlayed int64         `json:"free_spins_played"`
	FreeGameWin     float64       `json:"free_game_win"`
	BigWinCount     int64         `json:"big_win_count"`
	MaxOdds         float64       `json:"max_odds"`
	Duration        time.Duration `json:"duration"`
	SpinsPerSec     float64       `json:"spins_per_sec"`
}

// ToMap 转换为报告键值映射
func (r *MonteCarloResult) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"machine_id":        r.MachineID,
		"spins":             r.Spins,
		"bet":               r.Bet,
		"active_lines":      r.ActiveLines,
		"total_bet":         r.TotalBet,
		"total_win":         r.TotalWin,
		"rtp":               r.RTP,
		"hit_count":         r.HitCount,
		"hit_rate":          r.HitRate,
		"scatter_hits":      r.ScatterHits,
		"scatter_rate":      r.ScatterRate,
		"free_spins_played": r.FreeSpinsPlayed,
		"free_game_win":     r.FreeGameWin,
		"big_win_count":     r.BigWinCount,
		"max_odds":          r.MaxOdds,
		"duration_seconds":  r.Duration.Seconds(),
		"spins_per_sec":     r.SpinsPerSec,
	}
}

// EstimateRTP 固定投注额直接对机器做N次付费旋转，估算实际RTP
// 触发的免费旋转序列立即执行完，派彩计入总赢但不计投注
func EstimateRTP(m *machine.SlotMachine, spins int64, bet float64, activeLines int) (*MonteCarloResult, error) {
	if spins <= 0 {
		return nil, errors.New(errors.ErrInvalidParam, "旋转次数必须为正")
	}
	if bet <= 0 {
		return nil, errors.New(errors.ErrInvalidBet)
	}

	log := logger.GetModuleLogger("simulation")
	log.Info("蒙特卡洛估算开始",
		zap.String("machine_id", m.ID),
		zap.Int64("spins", spins),
		zap.Float64("bet", bet),
		zap.Int("active_lines", activeLines))

	result := &MonteCarloResult{
		MachineID:   m.ID,
		Spins:       spins,
		Bet:         bet,
		ActiveLines: activeLines,
	}

	start := time.Now()

	for i := int64(0); i < spins; i++ {
		grid, triggersFree, remaining, err := m.Spin(false, 0)
		if err != nil {
			return nil, err
		}
		win, err := m.EvaluateWin(grid, bet, false, activeLines)
		if err != nil {
			return nil, err
		}

		result.TotalBet += bet
		result.TotalWin += win.TotalWin
		if win.TotalWin > 0 {
			result.HitCount++
		}
		if win.ScatterCount >= 3 {
			result.ScatterHits++
		}
		if odds := win.TotalWin / bet; odds > result.MaxOdds {
			result.MaxOdds = odds
		}
		if win.TotalWin >= bet*10 {
			result.BigWinCount++
		}

		// 免费旋转不计投注，派彩全部计入
		for triggersFree && remaining > 0 {
			freeGrid, freeTriggers, freeRemaining, err := m.Spin(true, remaining)
			if err != nil {
				return nil, err
			}
			freeWin, err := m.EvaluateWin(freeGrid, bet, true, activeLines)
			if err != nil {
				return nil, err
			}

			result.FreeSpinsPlayed++
			result.FreeGameWin += freeWin.TotalWin
			result.TotalWin += freeWin.TotalWin
			if odds := freeWin.TotalWin / bet; odds > result.MaxOdds {
				result.MaxOdds = odds
			}

			triggersFree = freeTriggers
			remaining = freeRemaining
		}
	}

	result.Duration = time.Since(start)
	if result.TotalBet > 0 {
		result.RTP = result.TotalWin / result.TotalBet * 100
	}
	result.HitRate = float64(result.HitCount) / float64(spins)
	result.ScatterRate = float64(result.ScatterHits) / float64(spins)
	if result.Duration > 0 {
		result.SpinsPerSec = float64(spins) / result.Duration.Seconds()
	}

	log.Info("蒙特卡洛估算完成",
		zap.String("machine_id", m.ID),
		zap.Float64("rtp", result.RTP),
		zap.Float64("hit_rate", result.HitRate),
		zap.Int64("free_spins_played", result.FreeSpinsPlayed),
		zap.Duration("duration", result.Duration))

	return result, nil
}
