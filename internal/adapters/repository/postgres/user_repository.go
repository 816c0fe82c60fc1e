package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/ogurasousui/catalog-user-directory/internal/core/user"
	pgdb "github.com/ogurasousui/catalog-user-directory/internal/platform/db/postgres"
)

// deletedUserName は論理削除時に表示名を上書きする固定値です。
const deletedUserName = "Deleted User"

// searchResultLimit はあいまい検索が返す候補数の上限です。
const searchResultLimit = 10

// UserRepository は PostgreSQL を利用したユーザーディレクトリ永続化の実装です。
type UserRepository struct {
	pool pgdb.Queryer
}

// NewUserRepository は UserRepository を生成します。
func NewUserRepository(pool pgdb.Queryer) *UserRepository {
	return &UserRepository{pool: pool}
}

// List は論理削除されていないユーザーを (created_at, id) 昇順でページ単位に
// 取得します。結果が 1 件以上であれば最終行から次ページトークンを組み立てます。
func (r *UserRepository) List(ctx context.Context, filter user.ListUsersFilter, page user.ListPage) (*user.ListUsersResult, error) {
	if page.Size <= 0 {
		return nil, user.ErrInvalidPageSize
	}

	var (
		tokenCreatedAt *time.Time
		tokenID        *string
	)
	if page.Token != "" {
		createdAt, id, err := decodePageToken(page.Token)
		if err != nil {
			return nil, err
		}
		tokenCreatedAt = &createdAt
		tokenID = &id
	}

	filterIDs := make([]string, 0, len(filter.IDs))
	for _, id := range filter.IDs {
		filterIDs = append(filterIDs, id.String())
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, name, email, last_updated_with, user_type, created_at, updated_at
          FROM users
         WHERE deleted_at IS NULL
           AND ($1 OR name ILIKE '%' || $2 || '%')
           AND ($3 OR id = ANY($4))
           AND ((created_at > $5 OR $5::timestamptz IS NULL) OR (created_at = $5 AND id > $6))
         ORDER BY created_at ASC, id ASC
         LIMIT $7
    `, filter.Name == "", filter.Name, filter.IDs == nil, filterIDs, tokenCreatedAt, tokenID, page.Size)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		found, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, found)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch users: %w", err)
	}

	var nextPageToken string
	if len(users) > 0 {
		last := users[len(users)-1]
		nextPageToken = encodePageToken(last.CreatedAt, last.ID)
	}

	return &user.ListUsersResult{
		Users:         users,
		NextPageToken: nextPageToken,
	}, nil
}

// CreateOrUpdate は ID をキーとした原子的な upsert を行います。
// 新規作成か更新かは同一文の衝突解決シグナル (xmax = 0) から導出するため、
// 事前の存在チェックは行わず、同一 ID への並行呼び出しとも競合しません。
// 論理削除済みの行は deleted_at が外れて同じ行として復活します。
func (r *UserRepository) CreateOrUpdate(ctx context.Context, params user.CreateOrUpdateParams) (*user.CreateOrUpdateResult, error) {
	dbLastUpdatedWith, err := toDBLastUpdatedWith(params.LastUpdatedWith)
	if err != nil {
		return nil, err
	}
	dbUserType, err := toDBUserType(params.UserType)
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO users (id, name, email, last_updated_with, user_type)
        VALUES ($1, $2, $3, $4::user_last_updated_with, $5::user_type)
        ON CONFLICT (id)
        DO UPDATE SET name = $2,
                      email = $3,
                      last_updated_with = $4::user_last_updated_with,
                      user_type = $5::user_type,
                      updated_at = now(),
                      deleted_at = NULL
        RETURNING (xmax = 0) AS created, id, name, email, last_updated_with, user_type, created_at, updated_at
    `, params.ID.String(), params.Name, nullableString(params.Email), dbLastUpdatedWith, dbUserType)

	var (
		created         bool
		id              string
		name            string
		email           sql.NullString
		lastUpdatedWith string
		userType        string
		createdAt       time.Time
		updatedAt       sql.NullTime
	)
	if err := row.Scan(&created, &id, &name, &email, &lastUpdatedWith, &userType, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("postgres: create or update user: %w", err)
	}

	upserted, err := buildUser(id, name, email, lastUpdatedWith, userType, createdAt, updatedAt)
	if err != nil {
		return nil, err
	}

	outcome := user.UpsertOutcomeUpdated
	if created {
		outcome = user.UpsertOutcomeCreated
	}

	return &user.CreateOrUpdateResult{
		Outcome: outcome,
		User:    upserted,
	}, nil
}

// Delete は行を論理削除します。表示名は固定値に置き換え、メールアドレスは
// 消去します。述語は deleted_at を確認しないため、削除済みの行への再実行も
// マッチ扱いとなり deleted_at が更新されます。
func (r *UserRepository) Delete(ctx context.Context, id user.UserID) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE users
           SET deleted_at = now(),
               name = $2,
               email = NULL
         WHERE id = $1
    `, id.String(), deletedUserName)
	if err != nil {
		return false, fmt.Errorf("postgres: delete user: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// Search は名前とメールアドレスの連結に対するトライグラム距離が小さい順に
// 最大 10 件の候補を返します。論理削除された行も除外しません(元の挙動を保持)。
func (r *UserRepository) Search(ctx context.Context, term string) ([]*user.SearchResult, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT id, name, email, user_type, (name || ' ' || email) <-> $1 AS dist
          FROM users
         ORDER BY dist ASC, id ASC
         LIMIT $2
    `, term, searchResultLimit)
	if err != nil {
		return nil, fmt.Errorf("postgres: search users: %w", err)
	}
	defer rows.Close()

	var results []*user.SearchResult
	for rows.Next() {
		var (
			id       string
			name     string
			email    sql.NullString
			userType string
			dist     sql.NullFloat64
		)
		if err := rows.Scan(&id, &name, &email, &userType, &dist); err != nil {
			return nil, fmt.Errorf("postgres: search users: %w", err)
		}

		parsedID, err := parseStoredUserID(id)
		if err != nil {
			return nil, err
		}
		domainUserType, err := toDomainUserType(userType)
		if err != nil {
			return nil, err
		}

		results = append(results, &user.SearchResult{
			ID:       parsedID,
			Name:     name,
			Email:    nullableStringPtr(email),
			UserType: domainUserType,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search users: %w", err)
	}

	return results, nil
}

func scanUserRow(row pgx.Row) (*user.User, error) {
	var (
		id              string
		name            string
		email           sql.NullString
		lastUpdatedWith string
		userType        string
		createdAt       time.Time
		updatedAt       sql.NullTime
	)
	if err := row.Scan(&id, &name, &email, &lastUpdatedWith, &userType, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("postgres: scan user row: %w", err)
	}

	return buildUser(id, name, email, lastUpdatedWith, userType, createdAt, updatedAt)
}

func buildUser(id, name string, email sql.NullString, lastUpdatedWith, userType string, createdAt time.Time, updatedAt sql.NullTime) (*user.User, error) {
	parsedID, err := parseStoredUserID(id)
	if err != nil {
		return nil, err
	}

	domainLastUpdatedWith, err := toDomainLastUpdatedWith(lastUpdatedWith)
	if err != nil {
		return nil, err
	}

	domainUserType, err := toDomainUserType(userType)
	if err != nil {
		return nil, err
	}

	var updatedAtPtr *time.Time
	if updatedAt.Valid {
		value := updatedAt.Time
		updatedAtPtr = &value
	}

	return &user.User{
		ID:              parsedID,
		Name:            name,
		Email:           nullableStringPtr(email),
		UserType:        domainUserType,
		LastUpdatedWith: domainLastUpdatedWith,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAtPtr,
	}, nil
}

func parseStoredUserID(raw string) (user.UserID, error) {
	id, err := user.ParseUserID(raw)
	if err != nil {
		return user.UserID{}, fmt.Errorf("%w: %q", user.ErrCorruptUserID, raw)
	}
	return id, nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	result := value.String
	return &result
}
