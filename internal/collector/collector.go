package collector

import (
	"sort"
	"sync"
)

// Collector はプロセッサから届いた値を到着順に記録する共有リスト
type Collector struct {
	mu     sync.Mutex
	values []int
	counts map[int]int
}

// New は新しいCollectorを作成する
func New() *Collector {
	return &Collector{
		counts: make(map[int]int),
	}
}

// NewWithCapacity は容量を指定してCollectorを作成する
func NewWithCapacity(n int) *Collector {
	return &Collector{
		values: make([]int, 0, n),
		counts: make(map[int]int, n),
	}
}

// Record は値を1件記録する。複数のワーカーから並行に呼ばれる
func (c *Collector) Record(v int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = append(c.values, v)
	c.counts[v]++
}

// Values は到着順の値のコピーを返す
func (c *Collector) Values() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]int, len(c.values))
	copy(out, c.values)
	return out
}

// Len は記録件数を返す
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Missing は 0..n-1 のうち一度も記録されていない値を昇順で返す
func (c *Collector) Missing(n int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var missing []int
	for v := range n {
		if c.counts[v] == 0 {
			missing = append(missing, v)
		}
	}
	return missing
}

// Duplicates は2回以上記録された値を昇順で返す
func (c *Collector) Duplicates() []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dups []int
	for v, n := range c.counts {
		if n > 1 {
			dups = append(dups, v)
		}
	}
	sort.Ints(dups)
	return dups
}

// InOrder は到着順が昇順だったかを返す。
// プールは順序を保証しないので参考値としてのみ使う
func (c *Collector) InOrder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sort.IntsAreSorted(c.values)
}

// Reset は記録を全て破棄する
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = c.values[:0]
	c.counts = make(map[int]int)
}
