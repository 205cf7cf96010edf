package monitor

import (
	"time"

	"github.com/jd0713/schadenfreude/internal/risk"
)

// trackedPosition - позиция под наблюдением планировщика
type trackedPosition struct {
	Address    string
	Coin       string
	Tier       risk.Tier
	Distance   float64
	NextUpdate time.Time

	index int // позиция в куче, поддерживается heap.Interface
}

func (t *trackedPosition) key() string {
	return t.Address + "_" + t.Coin
}

// updateQueue - min-heap по NextUpdate.
// Самая срочная позиция всегда в корне: проверка "есть ли работа"
// стоит O(1), вставка и извлечение - O(log n). Линейный скан всех
// трекеров на каждом тике не нужен.
type updateQueue []*trackedPosition

func (q updateQueue) Len() int { return len(q) }

func (q updateQueue) Less(i, j int) bool {
	return q[i].NextUpdate.Before(q[j].NextUpdate)
}

func (q updateQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *updateQueue) Push(x interface{}) {
	item := x.(*trackedPosition)
	item.index = len(*q)
	*q = append(*q, item)
}

func (q *updateQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*q = old[:n-1]
	return item
}
