package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ogurasousui/catalog-user-directory/internal/core/user"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

var listUsersQuery = regexp.QuoteMeta(`
        SELECT id, name, email, last_updated_with, user_type, created_at, updated_at
          FROM users
         WHERE deleted_at IS NULL
           AND ($1 OR name ILIKE '%' || $2 || '%')
           AND ($3 OR id = ANY($4))
           AND ((created_at > $5 OR $5::timestamptz IS NULL) OR (created_at = $5 AND id > $6))
         ORDER BY created_at ASC, id ASC
         LIMIT $7
    `)

var createOrUpdateUserQuery = regexp.QuoteMeta(`
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
    `)

var deleteUserQuery = regexp.QuoteMeta(`
        UPDATE users
           SET deleted_at = now(),
               name = $2,
               email = NULL
         WHERE id = $1
    `)

var searchUsersQuery = regexp.QuoteMeta(`
        SELECT id, name, email, user_type, (name || ' ' || email) <-> $1 AS dist
          FROM users
         ORDER BY dist ASC, id ASC
         LIMIT $2
    `)

var userColumns = []string{"id", "name", "email", "last_updated_with", "user_type", "created_at", "updated_at"}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestScanUserRow_Success(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC()
	updatedAt := createdAt.Add(time.Minute)

	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 7 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "oidc~test_user_1"
		*(dest[1].(*string)) = "Test User 1"
		*(dest[2].(*sql.NullString)) = sql.NullString{String: "user@example.com", Valid: true}
		*(dest[3].(*string)) = "create-endpoint"
		*(dest[4].(*string)) = "human"
		*(dest[5].(*time.Time)) = createdAt
		*(dest[6].(*sql.NullTime)) = sql.NullTime{Time: updatedAt, Valid: true}
		return nil
	}}

	u, err := scanUserRow(row)
	if err != nil {
		t.Fatalf("scanUserRow returned error: %v", err)
	}

	if u.ID.String() != "oidc~test_user_1" {
		t.Errorf("unexpected id: %s", u.ID)
	}

	if u.Email == nil || *u.Email != "user@example.com" {
		t.Errorf("unexpected email: %v", u.Email)
	}

	if u.UserType != user.UserTypeHuman || u.LastUpdatedWith != user.LastUpdatedWithCreateEndpoint {
		t.Errorf("unexpected categorical fields: %+v", u)
	}

	if u.UpdatedAt == nil || !u.UpdatedAt.Equal(updatedAt) {
		t.Errorf("unexpected updated_at: %v", u.UpdatedAt)
	}
}

func TestScanUserRow_NullableFields(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		*(dest[0].(*string)) = "kubernetes~robot"
		*(dest[1].(*string)) = "robot"
		*(dest[2].(*sql.NullString)) = sql.NullString{}
		*(dest[3].(*string)) = "config-call-creation"
		*(dest[4].(*string)) = "application"
		*(dest[5].(*time.Time)) = time.Now().UTC()
		*(dest[6].(*sql.NullTime)) = sql.NullTime{}
		return nil
	}}

	u, err := scanUserRow(row)
	if err != nil {
		t.Fatalf("scanUserRow returned error: %v", err)
	}

	if u.Email != nil {
		t.Errorf("expected nil email, got %v", *u.Email)
	}

	if u.UpdatedAt != nil {
		t.Errorf("expected nil updated_at, got %v", *u.UpdatedAt)
	}
}

func TestScanUserRow_CorruptStoredID(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		*(dest[0].(*string)) = "no-separator"
		*(dest[1].(*string)) = "Broken"
		*(dest[3].(*string)) = "create-endpoint"
		*(dest[4].(*string)) = "human"
		*(dest[5].(*time.Time)) = time.Now().UTC()
		return nil
	}}

	if _, err := scanUserRow(row); !errors.Is(err, user.ErrCorruptUserID) {
		t.Fatalf("expected ErrCorruptUserID, got %v", err)
	}
}

func TestUserRepository_List_FirstPage(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Second)

	rows := pgxmock.NewRows(userColumns).
		AddRow("oidc~test_user_1", "Test User 1", nil, "create-endpoint", "human", now, nil).
		AddRow("oidc~test_user_2", "Test User 2", "two@example.com", "update-endpoint", "application", later, now)

	mock.ExpectQuery(listUsersQuery).
		WithArgs(true, "", true, []string{}, (*time.Time)(nil), (*string)(nil), 10).
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Size: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(result.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(result.Users))
	}

	if result.Users[0].ID.String() != "oidc~test_user_1" {
		t.Errorf("unexpected first user: %s", result.Users[0].ID)
	}

	last := result.Users[1]
	if result.NextPageToken != encodePageToken(last.CreatedAt, last.ID) {
		t.Errorf("next page token does not reference the last row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_TokenEmittedForPartialPage(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(userColumns).
		AddRow("oidc~only", "Only User", nil, "create-endpoint", "human", now, nil)

	mock.ExpectQuery(listUsersQuery).
		WithArgs(true, "", true, []string{}, (*time.Time)(nil), (*string)(nil), 5).
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Size: 5})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	// ページサイズに満たないページでもトークンは返る。呼び出し側は
	// 空のページが返るまで辿って終端を検出する。
	if result.NextPageToken == "" {
		t.Fatal("expected a next page token for a non-empty partial page")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_EmptyTerminalPage(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	lastSeen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lastID, err := user.NewUserID(user.IdentityProviderOIDC, "test_user_9")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	token := encodePageToken(lastSeen, lastID)
	wantCreatedAt, wantID, err := decodePageToken(token)
	if err != nil {
		t.Fatalf("decodePageToken returned error: %v", err)
	}

	mock.ExpectQuery(listUsersQuery).
		WithArgs(true, "", true, []string{}, &wantCreatedAt, &wantID, 5).
		WillReturnRows(pgxmock.NewRows(userColumns))

	result, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Token: token, Size: 5})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(result.Users) != 0 {
		t.Fatalf("expected empty page, got %d users", len(result.Users))
	}

	if result.NextPageToken != "" {
		t.Fatalf("expected no token on empty page, got %q", result.NextPageToken)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_WithFilters(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id, err := user.NewUserID(user.IdentityProviderOIDC, "test_user_1")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(userColumns).
		AddRow("oidc~test_user_1", "Test User 1", nil, "create-endpoint", "human", now, nil)

	mock.ExpectQuery(listUsersQuery).
		WithArgs(false, "Test", false, []string{"oidc~test_user_1"}, (*time.Time)(nil), (*string)(nil), 10).
		WillReturnRows(rows)

	result, err := repo.List(context.Background(), user.ListUsersFilter{
		IDs:  []user.UserID{id},
		Name: "Test",
	}, user.ListPage{Size: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if len(result.Users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(result.Users))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_List_InvalidArguments(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	if _, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Size: 0}); !errors.Is(err, user.ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}

	if _, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Token: "!!not-a-token!!", Size: 10}); !errors.Is(err, user.ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestUserRepository_List_CorruptStoredID(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(userColumns).
		AddRow("garbage", "Broken", nil, "create-endpoint", "human", now, nil)

	mock.ExpectQuery(listUsersQuery).
		WithArgs(true, "", true, []string{}, (*time.Time)(nil), (*string)(nil), 10).
		WillReturnRows(rows)

	if _, err := repo.List(context.Background(), user.ListUsersFilter{}, user.ListPage{Size: 10}); !errors.Is(err, user.ErrCorruptUserID) {
		t.Fatalf("expected ErrCorruptUserID, got %v", err)
	}
}

func TestUserRepository_CreateOrUpdate_Created(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id, err := user.NewUserID(user.IdentityProviderOIDC, "test_user_1")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	columns := append([]string{"created"}, userColumns...)
	rows := pgxmock.NewRows(columns).
		AddRow(true, "oidc~test_user_1", "Test User 1", "user@example.com", "create-endpoint", "human", now, nil)

	mock.ExpectQuery(createOrUpdateUserQuery).
		WithArgs("oidc~test_user_1", "Test User 1", "user@example.com", "create-endpoint", "human").
		WillReturnRows(rows)

	email := "user@example.com"
	result, err := repo.CreateOrUpdate(context.Background(), user.CreateOrUpdateParams{
		ID:              id,
		Name:            "Test User 1",
		Email:           &email,
		LastUpdatedWith: user.LastUpdatedWithCreateEndpoint,
		UserType:        user.UserTypeHuman,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate returned error: %v", err)
	}

	if result.Outcome != user.UpsertOutcomeCreated {
		t.Errorf("expected created outcome, got %s", result.Outcome)
	}

	if result.User.ID != id || result.User.Name != "Test User 1" {
		t.Errorf("unexpected user: %+v", result.User)
	}

	if result.User.UpdatedAt != nil {
		t.Errorf("expected nil updated_at on first insert, got %v", *result.User.UpdatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateOrUpdate_Updated(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id, err := user.NewUserID(user.IdentityProviderKubernetes, "robot")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	updatedAt := createdAt.Add(time.Hour)
	columns := append([]string{"created"}, userColumns...)
	rows := pgxmock.NewRows(columns).
		AddRow(false, "kubernetes~robot", "Robot Renamed", nil, "update-endpoint", "application", createdAt, updatedAt)

	mock.ExpectQuery(createOrUpdateUserQuery).
		WithArgs("kubernetes~robot", "Robot Renamed", nil, "update-endpoint", "application").
		WillReturnRows(rows)

	result, err := repo.CreateOrUpdate(context.Background(), user.CreateOrUpdateParams{
		ID:              id,
		Name:            "Robot Renamed",
		LastUpdatedWith: user.LastUpdatedWithUpdateEndpoint,
		UserType:        user.UserTypeApplication,
	})
	if err != nil {
		t.Fatalf("CreateOrUpdate returned error: %v", err)
	}

	if result.Outcome != user.UpsertOutcomeUpdated {
		t.Errorf("expected updated outcome, got %s", result.Outcome)
	}

	if result.User.UpdatedAt == nil || !result.User.UpdatedAt.Equal(updatedAt) {
		t.Errorf("unexpected updated_at: %v", result.User.UpdatedAt)
	}

	if !result.User.CreatedAt.Equal(createdAt) {
		t.Errorf("expected created_at preserved, got %v", result.User.CreatedAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Delete(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id, err := user.NewUserID(user.IdentityProviderOIDC, "test_user_1")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	mock.ExpectExec(deleteUserQuery).
		WithArgs("oidc~test_user_1", "Deleted User").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	found, err := repo.Delete(context.Background(), id)
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if !found {
		t.Fatal("expected delete to report a matched row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Delete_NotMatched(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	id, err := user.NewUserID(user.IdentityProviderOIDC, "never_created")
	if err != nil {
		t.Fatalf("NewUserID returned error: %v", err)
	}

	mock.ExpectExec(deleteUserQuery).
		WithArgs("oidc~never_created", "Deleted User").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	found, err := repo.Delete(context.Background(), id)
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	if found {
		t.Fatal("expected delete to report no matched row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Search(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "name", "email", "user_type", "dist"}).
		AddRow("oidc~test_user_1", "Test User 1", "one@example.com", "human", 0.25).
		AddRow("oidc~other", "Other Person", nil, "application", 0.9)

	mock.ExpectQuery(searchUsersQuery).
		WithArgs("Test", searchResultLimit).
		WillReturnRows(rows)

	results, err := repo.Search(context.Background(), "Test")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Name != "Test User 1" {
		t.Errorf("expected closest match first, got %s", results[0].Name)
	}

	if results[1].Email != nil {
		t.Errorf("expected nil email for second result, got %v", *results[1].Email)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Search_CorruptStoredID(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "name", "email", "user_type", "dist"}).
		AddRow("broken", "Broken", nil, "human", 0.1)

	mock.ExpectQuery(searchUsersQuery).
		WithArgs("Broken", searchResultLimit).
		WillReturnRows(rows)

	if _, err := repo.Search(context.Background(), "Broken"); !errors.Is(err, user.ErrCorruptUserID) {
		t.Fatalf("expected ErrCorruptUserID, got %v", err)
	}
}
