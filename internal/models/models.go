package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// JSONMap JSON字段类型
type JSONMap map[string]interface{}

// Value 实现driver.Valuer接口
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现sql.Scanner接口
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法将%T扫描为JSONMap", value)
	}
	return json.Unmarshal(data, m)
}

// SimulationRun 模拟运行表
// 一次模拟运行对应若干玩家×机器配对的批量会话
type SimulationRun struct {
	BaseModel
	RunID           string     `gorm:"uniqueIndex;size:64;not null" json:"run_id"`
	Seed            int64      `json:"seed"`
	MachineCount    int        `gorm:"default:0" json:"machine_count"`
	PlayerCount     int        `gorm:"default:0" json:"player_count"`
	SessionsPerPair int        `gorm:"default:1" json:"sessions_per_pair"`
	TotalSessions   int        `gorm:"default:0" json:"total_sessions"`
	TotalSpins      int64      `gorm:"default:0" json:"total_spins"`
	TotalBet        float64    `gorm:"default:0" json:"total_bet"`
	TotalWin        float64    `gorm:"default:0" json:"total_win"`
	OverallRTP      float64    `gorm:"default:0" json:"overall_rtp"`
	Status          string     `gorm:"size:20;default:'running'" json:"status"` // running, completed, failed
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	Config          JSONMap    `gorm:"type:json" json:"config"`
}

// SessionSummary 会话摘要表
type SessionSummary struct {
	BaseModel
	RunID          string     `gorm:"index;size:64" json:"run_id"`
	SessionID      string     `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	PlayerID       string     `gorm:"index;size:64;not null" json:"player_id"`
	MachineID      string     `gorm:"index;size:64;not null" json:"machine_id"`
	TotalSpins     int64      `gorm:"default:0" json:"total_spins"`
	WinCount       int64      `gorm:"default:0" json:"win_count"`
	TotalBet       float64    `gorm:"default:0" json:"total_bet"`
	TotalWin       float64    `gorm:"default:0" json:"total_win"`
	TotalProfit    float64    `gorm:"default:0" json:"total_profit"`
	BaseGameWin    float64    `gorm:"default:0" json:"base_game_win"`
	FreeGameWin    float64    `gorm:"default:0" json:"free_game_win"`
	ReturnToPlayer float64    `gorm:"default:0" json:"return_to_player"`
	BonusTriggered int64      `gorm:"default:0" json:"bonus_triggered"`
	FreeSpinsCount int64      `gorm:"default:0" json:"free_spins_count"`
	BigWinCount    int64      `gorm:"default:0" json:"big_win_count"`
	StartBalance   float64    `gorm:"default:0" json:"start_balance"`
	EndBalance     float64    `gorm:"default:0" json:"end_balance"`
	Duration       float64    `json:"duration"` // 秒
	EndReason      string     `gorm:"size:50" json:"end_reason"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// SpinRecord 旋转记录表
type SpinRecord struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SessionID          string    `gorm:"index;size:64;not null" json:"session_id"`
	SpinNumber         int64     `json:"spin_number"`
	Bet                float64   `json:"bet"`
	Payout             float64   `json:"payout"`
	Profit             float64   `json:"profit"`
	Odds               float64   `json:"odds"`
	BalanceBefore      float64   `json:"balance_before"`
	BalanceAfter       float64   `json:"balance_after"`
	InFreeSpins        bool      `gorm:"default:false" json:"in_free_spins"`
	FreeSpinsTriggered bool      `gorm:"default:false" json:"free_spins_triggered"`
	FreeSpinsRemaining int       `gorm:"default:0" json:"free_spins_remaining"`
	ScatterCount       int       `gorm:"default:0" json:"scatter_count"`
	ScatterWin         float64   `gorm:"default:0" json:"scatter_win"`
	Streak             int       `gorm:"default:0" json:"streak"`
	BigWin             bool      `gorm:"default:false" json:"big_win"`
	Detail             JSONMap   `gorm:"type:json" json:"detail"` // 结果矩阵与中奖线明细
	CreatedAt          time.Time `json:"created_at"`
}
