// Package subscription はProサブスクリプションの状態管理を提供する。
//
// 有効期限はバックグラウンドジョブに依存せず、状態を読み取る時点で判定する。
// 期限切れを検出した読み取りは、補正した状態を永続化してから返す。
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todomaster/internal/metrics"
	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/repository"
)

// Recorder はサブスクリプション状態遷移のメトリクス記録インターフェース。
type Recorder interface {
	RecordSubscriptionActivated()
	RecordSubscriptionExpired(source string, count int)
}

// Service はサブスクリプション管理のサービス層。
type Service struct {
	userRepo repository.UserRepository
	recorder Recorder
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(userRepo repository.UserRepository, recorder Recorder) *Service {
	return &Service{
		userRepo: userRepo,
		recorder: recorder,
		now:      time.Now,
	}
}

// Activate はサブスクリプションを有効化する。
// 終了日時は呼び出し時刻からカレンダー上の1ヶ月後に上書きされ、既存の残り期間は加算しない。
func (s *Service) Activate(ctx context.Context, userID string) (*model.SubscriptionStatus, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	now := s.now()
	ends := now.AddDate(0, 1, 0)

	user, err := s.userRepo.ActivateSubscription(ctx, userID, ends, now)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプションの有効化に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("subscription activated",
		slog.String("user_id", userID),
		slog.Time("subscription_ends", ends),
	)
	if s.recorder != nil {
		s.recorder.RecordSubscriptionActivated()
	}

	return model.StatusOf(user), nil
}

// GetStatus は現在のサブスクリプション状態を返す。
// 期限切れの場合は解除を永続化した後の状態を返す。
func (s *Service) GetStatus(ctx context.Context, userID string) (*model.SubscriptionStatus, error) {
	if userID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	user, err = s.Reconcile(ctx, user)
	if err != nil {
		return nil, err
	}

	return model.StatusOf(user), nil
}

// Reconcile は読み取ったユーザーの期限切れを補正する。
// 終了日時が現在時刻より前の場合のみ条件付きUPDATEで解除し、それ以外は書き込まない。
// 条件付きUPDATEが0件だった場合は並行する有効化が先行したとみなし、最新の状態を読み直す。
func (s *Service) Reconcile(ctx context.Context, user *model.User) (*model.User, error) {
	now := s.now()
	if !user.IsExpired(now) {
		return user, nil
	}

	cleared, err := s.userRepo.ClearExpiredSubscription(ctx, user.ID, now)
	if err != nil {
		return nil, fmt.Errorf("期限切れサブスクリプションの解除に失敗しました: %w", err)
	}

	if !cleared {
		fresh, err := s.userRepo.FindByID(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("ユーザーの再取得に失敗しました: %w", err)
		}
		if fresh == nil {
			return nil, model.NewUserNotFoundError()
		}
		return fresh, nil
	}

	slog.Info("subscription expired",
		slog.String("user_id", user.ID),
		slog.Time("subscription_ends", *user.SubscriptionEnds),
	)
	if s.recorder != nil {
		s.recorder.RecordSubscriptionExpired(metrics.ExpirySourceRead, 1)
	}

	corrected := *user
	corrected.IsSubscribed = false
	corrected.SubscriptionEnds = nil
	corrected.UpdatedAt = now
	return &corrected, nil
}

// SweepExpired は期限切れの全サブスクリプションを一括で解除し、解除件数を返す。
// 読み取り時の補正と同じ条件で更新するため、GetStatusの結果は変わらない。
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.userRepo.ClearAllExpiredSubscriptions(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("期限切れサブスクリプションの一括解除に失敗しました: %w", err)
	}

	if n > 0 && s.recorder != nil {
		s.recorder.RecordSubscriptionExpired(metrics.ExpirySourceSweep, int(n))
	}

	return n, nil
}
