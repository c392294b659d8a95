package scan

import (
	"context"
	"log/slog"
	"time"
)

// ScannerService はスケジューラから利用するスキャナーのインターフェース。
type ScannerService interface {
	// Scan はライブラリを1回走査してカタログとの差分を反映する。
	Scan(ctx context.Context) (*Summary, error)
}

// Scheduler は定期スキャンと外部からの再スキャン要求を直列に実行する。
// スキャンは常にスケジューラのゴルーチン上で1回ずつ実行されるため、
// Scannerは並行実行を考慮しなくてよい。
type Scheduler struct {
	scanner ScannerService
	logger  *slog.Logger
	trigger chan struct{}
}

// NewScheduler はスキャンスケジューラを生成する。
func NewScheduler(scanner ScannerService, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scanner: scanner,
		logger:  logger,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger は次の機会に再スキャンを要求する。ブロックしない。
// 既に要求が積まれている場合は何もしない。
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start は指定間隔の定期スキャンを開始し、ctxのキャンセルまでブロックする。
// 起動直後に1回実行し、以降はティッカーとTriggerの要求に応じて実行する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("スキャンスケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 起動直後に1回実行
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("スキャンスケジューラを停止しました")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.scanner.Scan(ctx); err != nil {
		s.logger.Error("ライブラリスキャンに失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
