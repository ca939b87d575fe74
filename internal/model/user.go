// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// IDは外部IdPが払い出したユーザーIDをそのまま使用する。
type User struct {
	ID               string
	Email            string
	IsSubscribed     bool
	SubscriptionEnds *time.Time // 未購読または期限切れ補正後はnil
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsExpired はサブスクリプション終了日時がnowより厳密に前かどうかを返す。
// 終了日時が無い場合は常にfalse。
func (u *User) IsExpired(now time.Time) bool {
	return u.SubscriptionEnds != nil && u.SubscriptionEnds.Before(now)
}

// SubscriptionStatus はサブスクリプションの公開状態を表す。
type SubscriptionStatus struct {
	IsSubscribed     bool
	SubscriptionEnds *time.Time
}

// StatusOf はユーザーのサブスクリプション状態を取り出す。
func StatusOf(u *User) *SubscriptionStatus {
	return &SubscriptionStatus{
		IsSubscribed:     u.IsSubscribed,
		SubscriptionEnds: u.SubscriptionEnds,
	}
}
