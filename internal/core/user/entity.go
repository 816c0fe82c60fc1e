package user

import (
	"strings"
	"time"
)

// IdentityProvider はユーザー ID を発行した ID プロバイダーの種別です。
type IdentityProvider string

const (
	// IdentityProviderOIDC は OIDC プロバイダー由来のユーザーを表します。
	IdentityProviderOIDC IdentityProvider = "oidc"
	// IdentityProviderKubernetes は Kubernetes サービスアカウント由来のユーザーを表します。
	IdentityProviderKubernetes IdentityProvider = "kubernetes"
)

const (
	userIDSeparator = "~"
	maxUserIDLength = 128
)

// UserID はプロバイダーとサブジェクトからなる複合ユーザー識別子です。
// 文字列表現は "<provider>~<subject>" で、一度発行されると変更されません。
type UserID struct {
	provider IdentityProvider
	subject  string
}

// NewUserID は UserID を生成します。
func NewUserID(provider IdentityProvider, subject string) (UserID, error) {
	if !isValidIdentityProvider(provider) {
		return UserID{}, ErrInvalidUserID
	}
	if subject == "" {
		return UserID{}, ErrInvalidUserID
	}
	if len(string(provider))+len(userIDSeparator)+len(subject) > maxUserIDLength {
		return UserID{}, ErrInvalidUserID
	}
	return UserID{provider: provider, subject: subject}, nil
}

// ParseUserID は "<provider>~<subject>" 形式の文字列から UserID を復元します。
func ParseUserID(raw string) (UserID, error) {
	provider, subject, found := strings.Cut(raw, userIDSeparator)
	if !found {
		return UserID{}, ErrInvalidUserID
	}
	return NewUserID(IdentityProvider(provider), subject)
}

// Provider は ID プロバイダー種別を返します。
func (id UserID) Provider() IdentityProvider {
	return id.provider
}

// Subject はプロバイダー内のサブジェクトを返します。
func (id UserID) Subject() string {
	return id.subject
}

// String は保存・転送に用いる文字列表現を返します。
func (id UserID) String() string {
	return string(id.provider) + userIDSeparator + id.subject
}

// IsZero は未設定の UserID かどうかを返します。
func (id UserID) IsZero() bool {
	return id.provider == "" && id.subject == ""
}

func isValidIdentityProvider(provider IdentityProvider) bool {
	switch provider {
	case IdentityProviderOIDC, IdentityProviderKubernetes:
		return true
	default:
		return false
	}
}

// UserType はユーザーの種別を表します。
type UserType string

const (
	// UserTypeApplication はアプリケーション(マシン)ユーザーを表します。
	UserTypeApplication UserType = "application"
	// UserTypeHuman は人間のユーザーを表します。
	UserTypeHuman UserType = "human"
)

func isValidUserType(userType UserType) bool {
	switch userType {
	case UserTypeApplication, UserTypeHuman:
		return true
	default:
		return false
	}
}

// LastUpdatedWith はレコードを最後に書き込んだ外部エンドポイントの種別です。
type LastUpdatedWith string

const (
	// LastUpdatedWithCreateEndpoint は作成エンドポイント経由の書き込みを表します。
	LastUpdatedWithCreateEndpoint LastUpdatedWith = "create-endpoint"
	// LastUpdatedWithConfigCallCreation はコンフィグ呼び出し時の自動作成を表します。
	LastUpdatedWithConfigCallCreation LastUpdatedWith = "config-call-creation"
	// LastUpdatedWithUpdateEndpoint は更新エンドポイント経由の書き込みを表します。
	LastUpdatedWithUpdateEndpoint LastUpdatedWith = "update-endpoint"
)

func isValidLastUpdatedWith(value LastUpdatedWith) bool {
	switch value {
	case LastUpdatedWithCreateEndpoint, LastUpdatedWithConfigCallCreation, LastUpdatedWithUpdateEndpoint:
		return true
	default:
		return false
	}
}

// User はユーザーディレクトリのエントリです。
// 論理削除マーカー(deleted_at)はストレージ専用の情報でありエンティティには現れません。
type User struct {
	ID              UserID
	Name            string
	Email           *string
	UserType        UserType
	LastUpdatedWith LastUpdatedWith
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
