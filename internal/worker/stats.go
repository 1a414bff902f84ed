package worker

import (
	"fixed-pool/internal/metrics"
)

// Stats はプールの統計スナップショット
type Stats struct {
	Name          string           `json:"name"`
	Size          int              `json:"size"`
	Prepared      bool             `json:"prepared"`
	Joined        bool             `json:"joined"`
	BusyWorkers   int              `json:"busy_workers"`
	IdleWorkers   int              `json:"idle_workers"`
	FailedWorkers int              `json:"failed_workers"`
	Parks         uint64           `json:"parks"`
	Metrics       metrics.Snapshot `json:"metrics"`
}

// Stats は現在の統計を返す。並行呼び出し可
func (p *Pool[T]) Stats() Stats {
	s := Stats{
		Name:          p.name,
		Size:          p.size,
		Prepared:      p.prepared.Load(),
		Joined:        p.joined.Load(),
		FailedWorkers: int(p.failed.Load()),
		Parks:         p.parks.Load(),
		Metrics:       p.metrics.Snapshot(),
	}

	if !s.Prepared {
		return s
	}
	for _, w := range p.workers {
		switch w.observedState() {
		case StateRunning:
			s.BusyWorkers++
		case StateReady:
			s.IdleWorkers++
		}
	}
	return s
}

// WorkerStates は各ワーカーの状態をインデックス順に返す
func (p *Pool[T]) WorkerStates() []WorkerInfo {
	if !p.prepared.Load() {
		return nil
	}
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		infos = append(infos, w.info())
	}
	return infos
}
