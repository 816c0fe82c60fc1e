package user

import "context"

// ListUsersFilter は一覧取得時の絞り込み条件です。
// IDs が nil の場合は ID による絞り込みを行いません。
// Name が空文字の場合は名前による絞り込みを行いません。
type ListUsersFilter struct {
	IDs  []UserID
	Name string
}

// ListPage は一覧取得時のページ指定です。Token が空文字の場合は先頭から取得します。
type ListPage struct {
	Token string
	Size  int
}

// ListUsersResult は一覧取得の結果です。
// 取得件数が 1 件以上であれば NextPageToken が設定されます。ページサイズに
// 満たないページでもトークンは返却されるため、呼び出し側は空のページが
// 返るまで辿ることで終端を検出します。
type ListUsersResult struct {
	Users         []*User
	NextPageToken string
}

// CreateOrUpdateParams は upsert の入力です。
type CreateOrUpdateParams struct {
	ID              UserID
	Name            string
	Email           *string
	LastUpdatedWith LastUpdatedWith
	UserType        UserType
}

// UpsertOutcome は upsert が新規作成と更新のどちらに解決されたかを表します。
type UpsertOutcome string

const (
	// UpsertOutcomeCreated は行が新規に挿入されたことを表します。
	UpsertOutcomeCreated UpsertOutcome = "created"
	// UpsertOutcomeUpdated は既存行(論理削除済み含む)が更新されたことを表します。
	UpsertOutcomeUpdated UpsertOutcome = "updated"
)

// CreateOrUpdateResult は upsert の結果です。
type CreateOrUpdateResult struct {
	Outcome UpsertOutcome
	User    *User
}

// SearchResult はあいまい検索の 1 候補です。
type SearchResult struct {
	ID       UserID
	Name     string
	Email    *string
	UserType UserType
}

// Repository はユーザーディレクトリの永続化を行うインターフェースです。
type Repository interface {
	// List は論理削除されていないユーザーを (created_at, id) 昇順で返します。
	List(ctx context.Context, filter ListUsersFilter, page ListPage) (*ListUsersResult, error)
	// CreateOrUpdate は ID をキーとした原子的な upsert を行います。
	// 論理削除済みの行に対しては削除マーカーを外して同じ行を復活させます。
	CreateOrUpdate(ctx context.Context, params CreateOrUpdateParams) (*CreateOrUpdateResult, error)
	// Delete は行を論理削除し、行が存在したかどうかを返します。
	// 存在しない ID に対する削除はエラーではなく false を返します。
	Delete(ctx context.Context, id UserID) (bool, error)
	// Search は検索語との類似度が高い順に最大 10 件の候補を返します。
	Search(ctx context.Context, term string) ([]*SearchResult, error)
}
