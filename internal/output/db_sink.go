package output

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/models"
	"github.com/wfunc/slot-simulator/internal/repository"
	"github.com/wfunc/slot-simulator/internal/session"
)

// DatabaseSink 将会话结果写入数据库的输出端
type DatabaseSink struct {
	runID       string
	summaries   repository.SessionSummaryRepository
	spins       repository.SpinRecordRepository
	recordSpins bool
	log         *zap.Logger
}

// NewDatabaseSink 创建数据库输出端
func NewDatabaseSink(db *gorm.DB, runID string, recordSpins bool) *DatabaseSink {
	return &DatabaseSink{
		runID:       runID,
		summaries:   repository.NewSessionSummaryRepository(db),
		spins:       repository.NewSpinRecordRepository(db),
		recordSpins: recordSpins,
		log:         logger.GetModuleLogger("output"),
	}
}

// ShouldRecordSpins 是否记录旋转明细
func (s *DatabaseSink) ShouldRecordSpins() bool {
	return s.recordSpins
}

// WriteSessionSummary 写入会话摘要记录
func (s *DatabaseSink) WriteSessionSummary(sessionID string, summary map[string]interface{}) error {
	now := time.Now()
	record := &models.SessionSummary{
		RunID:          s.runID,
		SessionID:      sessionID,
		PlayerID:       mapString(summary, "player_id"),
		MachineID:      mapString(summary, "machine_id"),
		TotalSpins:     mapInt64(summary, "total_spins"),
		WinCount:       mapInt64(summary, "win_count"),
		TotalBet:       mapFloat(summary, "total_bet"),
		TotalWin:       mapFloat(summary, "total_win"),
		TotalProfit:    mapFloat(summary, "total_profit"),
		BaseGameWin:    mapFloat(summary, "base_game_win"),
		FreeGameWin:    mapFloat(summary, "free_game_win"),
		ReturnToPlayer: mapFloat(summary, "return_to_player"),
		FreeSpinsCount: mapInt64(summary, "free_spins_count"),
		BigWinCount:    mapInt64(summary, "big_win_count"),
		StartBalance:   mapFloat(summary, "start_balance"),
		EndBalance:     mapFloat(summary, "end_balance"),
		Duration:       mapFloat(summary, "duration"),
		StartedAt:      now,
		EndedAt:        &now,
	}
	if bonus, ok := summary["bonus_triggered"].(bool); ok && bonus {
		record.BonusTriggered = 1
	}

	if err := s.summaries.Create(context.Background(), record); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "写入会话摘要失败: %s", sessionID)
	}

	s.log.Debug("会话摘要已入库", zap.String("session_id", sessionID))
	return nil
}

// WriteSpinHistory 写入旋转记录
func (s *DatabaseSink) WriteSpinHistory(sessionID string, spins []*session.SpinResult) error {
	if !s.recordSpins || len(spins) == 0 {
		return nil
	}

	records := make([]*models.SpinRecord, 0, len(spins))
	for _, spin := range spins {
		grid := make([]interface{}, len(spin.Grid))
		for i, v := range spin.Grid {
			grid[i] = v
		}
		records = append(records, &models.SpinRecord{
			SessionID:          sessionID,
			SpinNumber:         spin.SpinNumber,
			Bet:                spin.Bet,
			Payout:             spin.Payout,
			Profit:             spin.Profit,
			Odds:               spin.Odds,
			BalanceBefore:      spin.BalanceBefore,
			BalanceAfter:       spin.BalanceAfter,
			InFreeSpins:        spin.InFreeSpins,
			FreeSpinsTriggered: spin.FreeSpinsTriggered,
			FreeSpinsRemaining: spin.FreeSpinsRemaining,
			ScatterCount:       spin.ScatterCount,
			ScatterWin:         spin.ScatterWin,
			Streak:             spin.Streak,
			BigWin:             spin.BigWin,
			Detail: models.JSONMap{
				"grid":      grid,
				"line_wins": spin.LineWins,
			},
		})
	}

	if err := s.spins.BatchCreate(context.Background(), records); err != nil {
		return errors.Wrapf(err, errors.ErrDatabaseInsert, "写入旋转记录失败: %s", sessionID)
	}

	s.log.Debug("旋转记录已入库",
		zap.String("session_id", sessionID),
		zap.Int("count", len(records)))
	return nil
}

// MultiSink 组合多个输出端，逐个调用并返回首个错误
type MultiSink struct {
	sinks []session.OutputSink
}

// NewMultiSink 创建组合输出端
func NewMultiSink(sinks ...session.OutputSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// ShouldRecordSpins 任一输出端需要明细即记录
func (m *MultiSink) ShouldRecordSpins() bool {
	for _, s := range m.sinks {
		if s.ShouldRecordSpins() {
			return true
		}
	}
	return false
}

// WriteSessionSummary 写入所有输出端
func (m *MultiSink) WriteSessionSummary(sessionID string, summary map[string]interface{}) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WriteSessionSummary(sessionID, summary); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WriteSpinHistory 写入所有输出端
func (m *MultiSink) WriteSpinHistory(sessionID string, spins []*session.SpinResult) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WriteSpinHistory(sessionID, spins); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func mapString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func mapInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
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
