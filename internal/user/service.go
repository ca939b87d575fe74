// Package user はユーザー登録とプロフィール取得のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/repository"
)

// Recorder はユーザー登録のメトリクス記録インターフェース。
type Recorder interface {
	RecordUserRegistered(created bool)
}

// StatusReconciler は読み取ったユーザーのサブスクリプション期限切れを補正する。
type StatusReconciler interface {
	Reconcile(ctx context.Context, user *model.User) (*model.User, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	reconciler StatusReconciler
	recorder   Recorder
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// reconcilerとrecorderはnilでもよい。
func NewService(userRepo repository.UserRepository, reconciler StatusReconciler, recorder Recorder) *Service {
	return &Service{
		userRepo:   userRepo,
		reconciler: reconciler,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Register はIdPのユーザーIDでユーザーを作成する。
// 同一IDのユーザーが既に存在する場合は成功として扱い、createdにfalseを返す。
// IdPのWebhookは再送されうるため、何度呼ばれても結果は変わらない。
func (s *Service) Register(ctx context.Context, userID, email string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, model.NewValidationError("ユーザーIDが指定されていません。")
	}

	now := s.now()
	created, err := s.userRepo.CreateIfNotExists(ctx, &model.User{
		ID:        userID,
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	if created {
		slog.Info("user registered", slog.String("user_id", userID))
	} else {
		slog.Info("user already registered", slog.String("user_id", userID))
	}
	if s.recorder != nil {
		s.recorder.RecordUserRegistered(created)
	}

	return created, nil
}

// Get はユーザー情報を取得する。
// サブスクリプションが期限切れの場合は補正後の状態を返す。
func (s *Service) Get(ctx context.Context, userID string) (*model.User, error) {
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

	if s.reconciler != nil {
		user, err = s.reconciler.Reconcile(ctx, user)
		if err != nil {
			return nil, err
		}
	}

	return user, nil
}
