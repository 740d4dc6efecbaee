package machine

import (
	"sort"
	"strconv"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"github.com/wfunc/slot-simulator/internal/rng"
	"go.uber.org/zap"
)

// SlotMachine 老虎机
// 持有卷轴组、支付线、赔率表和投注表，执行旋转并委托中奖计算
// 配置数据构造后不可变；RNG是唯一会话级可变状态，实例不得跨会话共享
type SlotMachine struct {
	ID   string
	Name string

	rng rng.Strategy
	log *zap.Logger

	windowSize     int
	wildSymbols    map[int]bool
	scatterSymbol  int
	freeSpinsCount int
	freeMultiplier float64

	// reels[卷轴组名][卷轴名]，卷轴组如 "normal"、"bonus"
	reels    map[string]map[string]*Reel
	paylines [][]int
	payTable map[string][]float64
	betTable map[string][]float64

	evaluator *WinEvaluator
}

// NewSlotMachine 根据配置创建老虎机
// 缺失的卷轴组、支付线、赔率表会被合成默认值，构造不会因此失败
func NewSlotMachine(cfg *MachineConfig, strategy rng.Strategy) *SlotMachine {
	log := logger.GetModuleLogger("machine").With(zap.String("machine_id", cfg.ID))

	m := &SlotMachine{
		ID:             cfg.ID,
		Name:           cfg.Name,
		rng:            strategy,
		log:            log,
		windowSize:     cfg.WindowSize,
		scatterSymbol:  cfg.Symbols.Scatter,
		freeSpinsCount: cfg.FreeSpins.Count,
		freeMultiplier: cfg.FreeSpins.Multiplier,
	}
	if m.windowSize <= 0 {
		m.windowSize = 3
	}

	m.wildSymbols = make(map[int]bool, len(cfg.Symbols.Wild))
	for _, s := range cfg.Symbols.Wild {
		m.wildSymbols[s] = true
	}

	m.loadReels(cfg.Reels)
	m.loadPaylines(cfg.Paylines)
	m.loadPayTable(cfg.PayTable)
	m.loadBetTable(cfg.BetTable)

	m.evaluator = NewWinEvaluator(m)

	log.Info("老虎机初始化完成",
		zap.Int("reel_sets", len(m.reels)),
		zap.Int("paylines", len(m.paylines)),
		zap.Int("pay_table_symbols", len(m.payTable)),
	)

	return m
}

// loadReels 加载卷轴组配置
func (m *SlotMachine) loadReels(reelsConfig map[string]map[string][]int) {
	m.reels = make(map[string]map[string]*Reel)

	for setName, reelSet := range reelsConfig {
		set := make(map[string]*Reel, len(reelSet))
		for reelName, symbols := range reelSet {
			if len(symbols) == 0 {
				m.log.Warn("跳过空卷轴", zap.String("reel_set", setName), zap.String("reel", reelName))
				continue
			}
			set[reelName] = NewReel(symbols, setName+"_"+reelName)
		}
		if len(set) > 0 {
			m.reels[setName] = set
		}
	}

	// normal卷轴组必须存在，缺失时合成默认组
	if _, ok := m.reels["normal"]; !ok {
		m.log.Warn("缺少normal卷轴组，使用默认卷轴")
		defaultSet := make(map[string]*Reel, 5)
		for i := 1; i <= 5; i++ {
			name := "reel" + strconv.Itoa(i)
			defaultSet[name] = NewReel([]int{0, 1, 2, 3, 4, 5}, "default_normal_"+name)
		}
		m.reels["normal"] = defaultSet
	}
}

// loadPaylines 加载支付线配置
func (m *SlotMachine) loadPaylines(paylinesConfig []PaylineConfig) {
	m.paylines = nil

	for i, entry := range paylinesConfig {
		if len(entry.Indices) < 3 || hasNegativeIndex(entry.Indices) {
			m.log.Warn("跳过无效支付线", zap.Int("index", i), zap.Ints("indices", entry.Indices))
			continue
		}
		indices := make([]int, len(entry.Indices))
		copy(indices, entry.Indices)
		m.paylines = append(m.paylines, indices)
	}

	if len(m.paylines) == 0 {
		m.log.Warn("没有有效支付线，使用默认三条横线")
		m.paylines = [][]int{
			{0, 1, 2, 3, 4},      // 上行
			{5, 6, 7, 8, 9},      // 中行
			{10, 11, 12, 13, 14}, // 下行
		}
	}
}

// hasNegativeIndex 检查支付线是否含有负的网格位置
func hasNegativeIndex(indices []int) bool {
	for _, idx := range indices {
		if idx < 0 {
			return true
		}
	}
	return false
}

// loadPayTable 加载赔率表配置
func (m *SlotMachine) loadPayTable(payTableConfig []PayTableEntry) {
	m.payTable = make(map[string][]float64)

	for _, entry := range payTableConfig {
		if entry.Symbol == "" || len(entry.Payouts) < 3 {
			m.log.Warn("跳过无效赔率表项", zap.String("symbol", entry.Symbol), zap.Float64s("payouts", entry.Payouts))
			continue
		}
		payouts := make([]float64, len(entry.Payouts))
		copy(payouts, entry.Payouts)
		m.payTable[entry.Symbol] = payouts
	}

	if len(m.payTable) == 0 {
		m.log.Warn("没有有效赔率表项，使用默认赔率表")
		for i := 0; i <= 5; i++ {
			m.payTable[strconv.Itoa(i)] = []float64{5, 20, 100}
		}
		m.payTable[strconv.Itoa(m.scatterSymbol)] = []float64{5, 20, 100}
	}
}

// loadBetTable 加载投注表配置
func (m *SlotMachine) loadBetTable(betTableConfig []BetTableEntry) {
	m.betTable = make(map[string][]float64)

	for _, entry := range betTableConfig {
		if entry.Currency == "" || len(entry.BetOptions) == 0 {
			m.log.Warn("跳过无效投注表项", zap.String("currency", entry.Currency))
			continue
		}
		// 去重并排序
		seen := make(map[float64]bool, len(entry.BetOptions))
		var options []float64
		for _, b := range entry.BetOptions {
			if !seen[b] {
				seen[b] = true
				options = append(options, b)
			}
		}
		sort.Float64s(options)
		m.betTable[entry.Currency] = options
	}
}

// SetRNG 设置或更换随机数策略
func (m *SlotMachine) SetRNG(strategy rng.Strategy) {
	m.rng = strategy
}

// ResetState 重置机器状态以用于新会话
func (m *SlotMachine) ResetState(seed int64) {
	if m.rng != nil {
		m.rng.Seed(seed)
	}
}

// WindowSize 返回可见窗口行数
func (m *SlotMachine) WindowSize() int {
	return m.windowSize
}

// Paylines 返回支付线定义（只读）
func (m *SlotMachine) Paylines() [][]int {
	return m.paylines
}

// FreeSpinsCount 返回免费旋转奖励次数
func (m *SlotMachine) FreeSpinsCount() int {
	return m.freeSpinsCount
}

// Evaluator 返回中奖计算器
func (m *SlotMachine) Evaluator() *WinEvaluator {
	return m.evaluator
}

// AvailableBets 返回指定货币的可用投注额
// 未配置该货币时回退到CNY，再回退到[1.0]
func (m *SlotMachine) AvailableBets(currency string) []float64 {
	if bets, ok := m.betTable[currency]; ok {
		return bets
	}
	if bets, ok := m.betTable["CNY"]; ok {
		return bets
	}
	return []float64{1.0}
}

// Spin 执行一次旋转
// 返回行优先展开的符号网格、是否继续免费旋转、剩余免费旋转次数
func (m *SlotMachine) Spin(inFree bool, numFreeLeft int) ([]int, bool, int, error) {
	if m.rng == nil {
		m.log.Error("未设置随机数策略，无法旋转")
		return nil, false, 0, errors.New(errors.ErrRNGNotConfigured, "机器ID: "+m.ID)
	}

	// 免费旋转使用bonus卷轴组，缺失时回退到normal
	reelSetName := "normal"
	if inFree {
		reelSetName = "bonus"
	}
	currentReels, ok := m.reels[reelSetName]
	if !ok {
		currentReels = m.reels["normal"]
	}

	reelNames := make([]string, 0, len(currentReels))
	for name := range currentReels {
		reelNames = append(reelNames, name)
	}
	sort.Strings(reelNames)
	numReels := len(reelNames)

	grid := make([]int, numReels*m.windowSize)

	// 每个卷轴抽取随机起始位置，读取窗口内符号
	for col, name := range reelNames {
		reel := currentReels[name]
		pos := m.rng.GetRandomInt(0, reel.Len()-1)
		symbols := reel.WindowedSymbols(pos, m.windowSize)
		for row := 0; row < m.windowSize; row++ {
			grid[row*numReels+col] = symbols[row]
		}
	}

	var triggersFree bool
	if !inFree {
		// 统计含有scatter符号的卷轴列数，≥3列触发免费旋转
		scatterCols := 0
		for col := 0; col < numReels; col++ {
			for row := 0; row < m.windowSize; row++ {
				if grid[row*numReels+col] == m.scatterSymbol {
					scatterCols++
					break
				}
			}
		}
		triggersFree = scatterCols >= 3
		if triggersFree {
			numFreeLeft = m.freeSpinsCount
		} else {
			numFreeLeft = 0
		}
	} else {
		// 免费旋转中递减计数器，不重复触发
		numFreeLeft--
		if numFreeLeft < 0 {
			numFreeLeft = 0
		}
		triggersFree = numFreeLeft > 0
	}

	return grid, triggersFree, numFreeLeft, nil
}

// EvaluateWin 计算一次旋转的中奖金额
func (m *SlotMachine) EvaluateWin(grid []int, bet float64, inFree bool, activeLines int) (*WinResult, error) {
	return m.evaluator.EvaluateWins(grid, bet, inFree, activeLines)
}

// Info 返回机器信息摘要
func (m *SlotMachine) Info() map[string]interface{} {
	reelSets := make([]string, 0, len(m.reels))
	for name := range m.reels {
		reelSets = append(reelSets, name)
	}
	sort.Strings(reelSets)

	currencies := make([]string, 0, len(m.betTable))
	for c := range m.betTable {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	return map[string]interface{}{
		"id":                    m.ID,
		"name":                  m.Name,
		"reel_sets":             reelSets,
		"num_paylines":          len(m.paylines),
		"scatter_symbol":        m.scatterSymbol,
		"free_spins_award":      m.freeSpinsCount,
		"free_spins_multiplier": m.freeMultiplier,
		"available_currencies":  currencies,
	}
}
