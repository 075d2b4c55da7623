// Package sweep は期限切れセッションの自動削除ジョブを提供する。
// 有効期限を過ぎたトークンはverify時に拒否されるが、ユーザーの
// セッション一覧には残り続けるため、定期バッチで取り除いて
// 一覧の無制限な成長を防ぐ。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// TokenDecoder はトークンの検証インターフェース。
// token.Codecの部分集合として定義する。
type TokenDecoder interface {
	Decode(raw string, now time.Time) (string, error)
}

// Metrics は削除件数のメトリクス記録インターフェース。nilの場合は記録しない。
type Metrics interface {
	RecordSessionsSwept(count int)
}

// SweepJob は期限切れセッションの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type SweepJob struct {
	userRepo repository.UserRepository
	decoder  TokenDecoder
	metrics  Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewSweepJob は新しいSweepJobを生成する。metricsはnilでもよい。
func NewSweepJob(userRepo repository.UserRepository, decoder TokenDecoder, metrics Metrics, logger *slog.Logger) *SweepJob {
	return &SweepJob{
		userRepo: userRepo,
		decoder:  decoder,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Run はセッションを持つ全ユーザーを走査し、復号に失敗するトークン
// （期限切れ・署名鍵ローテーション後の旧トークン）を一覧から取り除く。
// 削除はトークン単位のアトミックな配列操作で行うため、走査中に
// 発行された新しいセッションが失われることはない。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SweepJob) Run(ctx context.Context) error {
	start := j.now()

	users, err := j.userRepo.ListSessionHolders(ctx)
	if err != nil {
		j.logger.Error("セッション掃除ジョブの対象取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to list session holders: %w", err)
	}

	swept := 0
	for _, user := range users {
		n, err := j.sweepUser(ctx, user)
		if err != nil {
			// 1ユーザーの失敗で全体を止めず、残りのユーザーを処理する
			j.logger.Error("セッション掃除に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		swept += n
	}

	if j.metrics != nil && swept > 0 {
		j.metrics.RecordSessionsSwept(swept)
	}

	duration := time.Since(start)
	j.logger.Info("セッション掃除ジョブが完了しました",
		slog.Int("swept_count", swept),
		slog.Int("user_count", len(users)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// sweepUser は1ユーザーの期限切れセッションを削除し、削除件数を返す。
func (j *SweepJob) sweepUser(ctx context.Context, user *model.User) (int, error) {
	swept := 0
	for _, tok := range user.Sessions {
		if _, err := j.decoder.Decode(tok, j.now()); err == nil {
			continue
		}
		if err := j.userRepo.RemoveSession(ctx, user.ID, tok); err != nil {
			return swept, fmt.Errorf("failed to remove expired session: %w", err)
		}
		swept++
	}
	return swept, nil
}

// RunLoop は起動直後に1回実行し、以降はinterval間隔でRunを繰り返す。
// ctxのキャンセルで停止する。
func (j *SweepJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("セッション掃除ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション掃除ループを停止します")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("セッション掃除ジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
