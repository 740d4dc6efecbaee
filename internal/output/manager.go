package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wfunc/slot-simulator/internal/config"
	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/session"
)

// spinCSVHeader 旋转明细CSV表头
var spinCSVHeader = []string{
	"session_id", "spin_number", "bet", "payout", "profit", "odds",
	"balance_before", "balance_after", "in_free_spins", "free_spins_triggered",
	"free_spins_remaining", "scatter_count", "scatter_win", "streak", "big_win",
}

// Manager 模拟结果输出管理器
// 每次运行创建独立的带时间戳的目录，摘要写JSON、旋转明细写CSV；
// 所有写入都发生在会话结束之后，不影响旋转热路径
type Manager struct {
	cfg    *config.OutputConfig
	runDir string
	mu     sync.Mutex
	log    *zap.Logger
}

// NewManager 创建输出管理器并初始化本次运行的输出目录
func NewManager(cfg *config.OutputConfig) (*Manager, error) {
	runDir := filepath.Join(cfg.Dir, "run_"+time.Now().Format("20060102_150405"))
	for _, dir := range []string{runDir, filepath.Join(runDir, "summaries"), filepath.Join(runDir, "spins")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, errors.ErrOutputInit, "创建输出目录失败: %s", dir)
		}
	}

	log := logger.GetModuleLogger("output")
	log.Info("输出目录已创建", zap.String("run_dir", runDir))

	return &Manager{
		cfg:    cfg,
		runDir: runDir,
		log:    log,
	}, nil
}

// RunDir 返回本次运行的输出目录
func (m *Manager) RunDir() string {
	return m.runDir
}

// ShouldRecordSpins 是否记录旋转明细
func (m *Manager) ShouldRecordSpins() bool {
	return m.cfg.WriteSpins
}

// WriteSessionSummary 将会话摘要写为JSON文件
func (m *Manager) WriteSessionSummary(sessionID string, summary map[string]interface{}) error {
	if !m.cfg.WriteSummaries {
		return nil
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrOutputWrite, "序列化会话摘要失败")
	}

	path := filepath.Join(m.runDir, "summaries", sessionID+".json")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrOutputWrite, "写入会话摘要失败: %s", path)
	}

	m.log.Debug("会话摘要已写入",
		zap.String("session_id", sessionID),
		zap.String("path", path))
	return nil
}

// WriteSpinHistory 将旋转历史写为CSV文件
// 按配置的批大小分批刷盘，避免长会话一次性占用过多内存
func (m *Manager) WriteSpinHistory(sessionID string, spins []*session.SpinResult) error {
	if !m.cfg.WriteSpins || len(spins) == 0 {
		return nil
	}

	path := filepath.Join(m.runDir, "spins", sessionID+".csv")

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrOutputWrite, "创建旋转明细文件失败: %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(spinCSVHeader); err != nil {
		return errors.Wrap(err, errors.ErrOutputWrite, "写入CSV表头失败")
	}

	batchSize := m.cfg.SpinBatchSize
	if batchSize <= 0 {
		batchSize = 10000
	}

	for i, spin := range spins {
		if err := w.Write(spinRecord(spin)); err != nil {
			return errors.Wrapf(err, errors.ErrOutputWrite, "写入第%d条旋转记录失败", i+1)
		}
		if (i+1)%batchSize == 0 {
			w.Flush()
			if err := w.Error(); err != nil {
				return errors.Wrap(err, errors.ErrOutputWrite, "刷写旋转记录失败")
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, errors.ErrOutputWrite, "刷写旋转记录失败")
	}

	m.log.Debug("旋转历史已写入",
		zap.String("session_id", sessionID),
		zap.Int("spin_count", len(spins)),
		zap.String("path", path))
	return nil
}

// WriteRunReport 将整次运行的汇总报告写到输出目录根部
func (m *Manager) WriteRunReport(report map[string]interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrOutputWrite, "序列化运行报告失败")
	}

	path := filepath.Join(m.runDir, "report.json")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrOutputWrite, "写入运行报告失败: %s", path)
	}

	m.log.Info("运行报告已写入", zap.String("path", path))
	return nil
}

func spinRecord(s *session.SpinResult) []string {
	return []string{
		s.SessionID,
		strconv.FormatInt(s.SpinNumber, 10),
		formatFloat(s.Bet),
		formatFloat(s.Payout),
		formatFloat(s.Profit),
		formatFloat(s.Odds),
		formatFloat(s.BalanceBefore),
		formatFloat(s.BalanceAfter),
		strconv.FormatBool(s.InFreeSpins),
		strconv.FormatBool(s.FreeSpinsTriggered),
		strconv.Itoa(s.FreeSpinsRemaining),
		strconv.Itoa(s.ScatterCount),
		formatFloat(s.ScatterWin),
		strconv.Itoa(s.Streak),
		strconv.FormatBool(s.BigWin),
	}
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
