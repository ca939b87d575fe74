// Package expiry は期限切れサブスクリプションの定期一括解除ジョブを提供する。
// 状態の読み取り時にも期限切れは補正されるため、このジョブは
// 長期間アクセスのないユーザーの保存状態を整えるためのもの。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper は期限切れサブスクリプションを一括解除し、解除件数を返す。
// subscription.Serviceが満たす。
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Job は期限切れサブスクリプションの一括解除ジョブ。
// 条件付きUPDATEのみを発行するため、何度実行しても結果は変わらない。
type Job struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(sweeper Sweeper, logger *slog.Logger) *Job {
	return &Job{
		sweeper: sweeper,
		logger:  logger,
	}
}

// Run は一括解除を1回実行する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	n, err := j.sweeper.SweepExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れサブスクリプションの一括解除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れサブスクリプションの一括解除に失敗: %w", err)
	}

	j.logger.Info("期限切れサブスクリプションの一括解除が完了しました",
		slog.Int64("expired_count", n),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行した後、interval間隔でRunを繰り返す。
// コンテキストがキャンセルされるまで戻らない。個々の実行の失敗はログに記録して継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	j.logger.Info("期限切れサブスクリプションの一括解除ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("期限切れサブスクリプションの一括解除ジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
