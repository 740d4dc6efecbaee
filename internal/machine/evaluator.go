package machine

import (
	"strconv"

	"github.com/wfunc/slot-simulator/internal/errors"
	"github.com/wfunc/slot-simulator/internal/logger"
	"go.uber.org/zap"
)

// LineWin 单条支付线的中奖明细
type LineWin struct {
	LineIndex  int     `json:"line_index"`
	Symbol     int     `json:"symbol"`
	MatchCount int     `json:"match_count"`
	WinAmount  float64 `json:"win_amount"`
	Multiplier float64 `json:"multiplier"`
}

// WinResult 一次旋转的中奖计算结果
type WinResult struct {
	TotalWin     float64   `json:"total_win"`
	LineWins     []float64 `json:"line_wins"`
	LineWinsInfo []LineWin `json:"line_wins_info"`
	ScatterCount int       `json:"scatter_count"`
	ScatterWin   float64   `json:"scatter_win"`
}

// WinEvaluator 中奖计算器
// 纯函数式：相同输入产生比特级一致的输出，内部不使用随机数
type WinEvaluator struct {
	paylines        [][]int
	wildMultipliers map[int]float64
	scatterSymbol   int
	payTable        map[string][]float64
	freeMultiplier  float64
	log             *zap.Logger
}

// NewWinEvaluator 从机器构造中奖计算器
func NewWinEvaluator(m *SlotMachine) *WinEvaluator {
	e := &WinEvaluator{
		paylines:       m.paylines,
		scatterSymbol:  m.scatterSymbol,
		payTable:       m.payTable,
		freeMultiplier: m.freeMultiplier,
		log:            logger.GetModuleLogger("machine").With(zap.String("machine_id", m.ID)),
	}

	// 预计算wild符号的倍数：符号码≥100时取 code mod 100（最小为1），<100的倍数为1
	e.wildMultipliers = make(map[int]float64, len(m.wildSymbols))
	for s := range m.wildSymbols {
		e.wildMultipliers[s] = genWildMultiplier(s)
	}

	return e
}

func genWildMultiplier(symbol int) float64 {
	if symbol < 100 {
		return 1
	}
	multiplier := symbol % 100
	if multiplier <= 0 {
		return 1
	}
	return float64(multiplier)
}

func (e *WinEvaluator) isWild(symbol int) bool {
	_, ok := e.wildMultipliers[symbol]
	return ok
}

func (e *WinEvaluator) isScatter(symbol int) bool {
	return symbol == e.scatterSymbol
}

// EvaluateWins 计算一次旋转的全部中奖
// activeLines ≤ 0表示启用全部支付线，超出范围的值会被钳制并记录警告
// 空网格是致命的配置错误
func (e *WinEvaluator) EvaluateWins(grid []int, bet float64, inFree bool, activeLines int) (*WinResult, error) {
	if len(grid) == 0 {
		e.log.Error("中奖计算收到空网格")
		return nil, errors.New(errors.ErrEmptyGrid)
	}

	totalLines := len(e.paylines)
	if activeLines <= 0 {
		activeLines = totalLines
	} else if activeLines > totalLines {
		e.log.Warn("启用线数被钳制", zap.Int("requested", activeLines), zap.Int("adjusted", totalLines))
		activeLines = totalLines
	}

	baseMultiplier := 1.0
	if inFree {
		baseMultiplier = e.freeMultiplier
	}

	result := &WinResult{
		LineWins: make([]float64, 0, activeLines),
	}

	// scatter按网格中出现总数计奖，不参与支付线，也不乘免费倍数
	scatterCount := 0
	for _, s := range grid {
		if s == e.scatterSymbol {
			scatterCount++
		}
	}
	result.ScatterCount = scatterCount

	if scatterCount >= 3 {
		scatterIndex := scatterCount - 3
		if scatterIndex > 2 {
			scatterIndex = 2
		}
		scatterPays := e.payTable[strconv.Itoa(e.scatterSymbol)]
		if scatterIndex < len(scatterPays) {
			result.ScatterWin = scatterPays[scatterIndex] * bet
			result.TotalWin += result.ScatterWin
		}
	}

	// 按定义顺序逐条计算启用的支付线
	for lineIdx := 0; lineIdx < activeLines; lineIdx++ {
		lineResult := e.evaluateLine(grid, e.paylines[lineIdx], bet, lineIdx, baseMultiplier, activeLines)
		result.LineWins = append(result.LineWins, lineResult.WinAmount)
		if lineResult.WinAmount > 0 {
			result.LineWinsInfo = append(result.LineWinsInfo, lineResult)
			result.TotalWin += lineResult.WinAmount
		}
	}

	return result, nil
}

// evaluateLine 计算单条支付线
// 线首符号决定本线符号，wild和scatter不能作为线首
func (e *WinEvaluator) evaluateLine(grid []int, payline []int, bet float64, lineIdx int, baseMultiplier float64, activeLines int) LineWin {
	result := LineWin{
		LineIndex:  lineIdx,
		Symbol:     -1,
		Multiplier: baseMultiplier,
	}

	if len(payline) < 3 {
		return result
	}

	firstPos := payline[0]
	if firstPos < 0 || firstPos >= len(grid) {
		return result
	}

	firstSymbol := grid[firstPos]
	if e.isWild(firstSymbol) || e.isScatter(firstSymbol) {
		return result
	}

	symbolKey := strconv.Itoa(firstSymbol)
	symbolPays, ok := e.payTable[symbolKey]
	if !ok {
		return result
	}

	result.Symbol = firstSymbol
	result.MatchCount = 1
	multiplier := baseMultiplier

	// 从线首向后连续匹配，wild代替任意符号并累乘自身倍数，遇不匹配即停
	for i := 1; i < len(payline); i++ {
		pos := payline[i]
		if pos < 0 || pos >= len(grid) {
			break
		}

		current := grid[pos]
		if wildMult, isWild := e.wildMultipliers[current]; isWild {
			result.MatchCount++
			multiplier *= wildMult
		} else if current == firstSymbol {
			result.MatchCount++
		} else {
			break
		}
	}

	if result.MatchCount < 3 {
		return result
	}

	// 赔率表金额是全额赔付，按启用线数均摊
	winIndex := result.MatchCount - 3
	if winIndex < len(symbolPays) {
		result.WinAmount = symbolPays[winIndex] * bet * multiplier / float64(activeLines)
	}
	result.Multiplier = multiplier

	return result
}
