package user

import (
	"context"
	"net/mail"
	"strings"
)

const (
	defaultListPageSize = 100
	maxListPageSize     = 1000
)

// PaginationPolicy はページサイズの既定値と上限を定めます。
// プロセス全体の設定を暗黙に参照せず、明示的に受け渡します。
type PaginationPolicy struct {
	DefaultPageSize int
	MaxPageSize     int
}

// effectivePageSize は要求されたページサイズをポリシーに従って解決します。
// 未指定(0 以下)は既定値、上限超過は上限に丸められます。
func (p PaginationPolicy) effectivePageSize(requested int) int {
	if requested <= 0 {
		return p.DefaultPageSize
	}
	if requested > p.MaxPageSize {
		return p.MaxPageSize
	}
	return requested
}

// Service はユーザーディレクトリに関するユースケースをまとめます。
type Service struct {
	repo  Repository
	pages PaginationPolicy
}

// UseCase はユーザーディレクトリユースケースの公開インターフェースです。
type UseCase interface {
	ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersResult, error)
	CreateOrUpdateUser(ctx context.Context, in CreateOrUpdateUserInput) (*CreateOrUpdateResult, error)
	DeleteUser(ctx context.Context, in DeleteUserInput) (bool, error)
	SearchUsers(ctx context.Context, in SearchUsersInput) ([]*SearchResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository, pages PaginationPolicy) *Service {
	if pages.DefaultPageSize <= 0 {
		pages.DefaultPageSize = defaultListPageSize
	}
	if pages.MaxPageSize <= 0 {
		pages.MaxPageSize = maxListPageSize
	}
	return &Service{repo: repo, pages: pages}
}

// ListUsersInput は一覧取得時の入力です。
type ListUsersInput struct {
	IDs       []UserID
	Name      string
	PageToken string
	PageSize  int
}

// CreateOrUpdateUserInput は upsert 時の入力です。
type CreateOrUpdateUserInput struct {
	ID              UserID
	Name            string
	Email           *string
	LastUpdatedWith LastUpdatedWith
	UserType        UserType
}

// DeleteUserInput は論理削除時の入力です。
type DeleteUserInput struct {
	ID UserID
}

// SearchUsersInput はあいまい検索時の入力です。
type SearchUsersInput struct {
	Term string
}

// ListUsers はユーザーの一覧をページ単位で取得します。
func (s *Service) ListUsers(ctx context.Context, in ListUsersInput) (*ListUsersResult, error) {
	for _, id := range in.IDs {
		if id.IsZero() {
			return nil, ErrInvalidUserID
		}
	}

	return s.repo.List(ctx, ListUsersFilter{
		IDs:  in.IDs,
		Name: strings.TrimSpace(in.Name),
	}, ListPage{
		Token: in.PageToken,
		Size:  s.pages.effectivePageSize(in.PageSize),
	})
}

// CreateOrUpdateUser はユーザーを新規作成、または同一 ID の既存行を更新します。
func (s *Service) CreateOrUpdateUser(ctx context.Context, in CreateOrUpdateUserInput) (*CreateOrUpdateResult, error) {
	if in.ID.IsZero() {
		return nil, ErrInvalidUserID
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	if !isValidLastUpdatedWith(in.LastUpdatedWith) {
		return nil, ErrInvalidLastUpdatedWith
	}
	if !isValidUserType(in.UserType) {
		return nil, ErrInvalidUserType
	}

	return s.repo.CreateOrUpdate(ctx, CreateOrUpdateParams{
		ID:              in.ID,
		Name:            name,
		Email:           email,
		LastUpdatedWith: in.LastUpdatedWith,
		UserType:        in.UserType,
	})
}

// DeleteUser はユーザーを論理削除し、行が存在したかどうかを返します。
func (s *Service) DeleteUser(ctx context.Context, in DeleteUserInput) (bool, error) {
	if in.ID.IsZero() {
		return false, ErrInvalidUserID
	}
	return s.repo.Delete(ctx, in.ID)
}

// SearchUsers は検索語に近い順に最大 10 件の候補を返します。
func (s *Service) SearchUsers(ctx context.Context, in SearchUsersInput) ([]*SearchResult, error) {
	return s.repo.Search(ctx, strings.TrimSpace(in.Term))
}

func normalizeEmail(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}

	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	normalized := strings.ToLower(addr.Address)
	return &normalized, nil
}
