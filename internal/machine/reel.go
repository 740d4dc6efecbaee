package machine

// Reel 卷轴，符号码的环形序列
// 构造后不可变，可在多个会话间只读共享
type Reel struct {
	id      string
	symbols []int
}

// NewReel 创建卷轴
func NewReel(symbols []int, id string) *Reel {
	s := make([]int, len(symbols))
	copy(s, symbols)
	return &Reel{id: id, symbols: s}
}

// ID 返回卷轴标识
func (r *Reel) ID() string {
	return r.id
}

// Len 返回符号数量
func (r *Reel) Len() int {
	return len(r.symbols)
}

// WindowedSymbols 从起始位置环形读取window个符号
// 起始位置按卷轴长度取模，越界回绕；空卷轴返回空序列
func (r *Reel) WindowedSymbols(start, window int) []int {
	if len(r.symbols) == 0 || window <= 0 {
		return []int{}
	}

	result := make([]int, window)
	length := len(r.symbols)
	start = ((start % length) + length) % length
	for i := 0; i < window; i++ {
		result[i] = r.symbols[(start+i)%length]
	}
	return result
}
