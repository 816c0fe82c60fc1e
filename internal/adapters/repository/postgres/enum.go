package postgres

import (
	"fmt"

	"github.com/ogurasousui/catalog-user-directory/internal/core/user"
)

// ストレージ側の列挙値。ドメイン側の表現とは独立した符号化として扱い、
// 相互変換は必ず以下の明示的なマッピングを通します。
const (
	dbUserTypeApplication = "application"
	dbUserTypeHuman       = "human"

	dbLastUpdatedWithCreateEndpoint     = "create-endpoint"
	dbLastUpdatedWithConfigCallCreation = "config-call-creation"
	dbLastUpdatedWithUpdateEndpoint     = "update-endpoint"
)

func toDBUserType(userType user.UserType) (string, error) {
	switch userType {
	case user.UserTypeApplication:
		return dbUserTypeApplication, nil
	case user.UserTypeHuman:
		return dbUserTypeHuman, nil
	default:
		return "", fmt.Errorf("%w: %q", user.ErrInvalidUserType, userType)
	}
}

func toDomainUserType(value string) (user.UserType, error) {
	switch value {
	case dbUserTypeApplication:
		return user.UserTypeApplication, nil
	case dbUserTypeHuman:
		return user.UserTypeHuman, nil
	default:
		return "", fmt.Errorf("postgres: unknown user_type value %q", value)
	}
}

func toDBLastUpdatedWith(value user.LastUpdatedWith) (string, error) {
	switch value {
	case user.LastUpdatedWithCreateEndpoint:
		return dbLastUpdatedWithCreateEndpoint, nil
	case user.LastUpdatedWithConfigCallCreation:
		return dbLastUpdatedWithConfigCallCreation, nil
	case user.LastUpdatedWithUpdateEndpoint:
		return dbLastUpdatedWithUpdateEndpoint, nil
	default:
		return "", fmt.Errorf("%w: %q", user.ErrInvalidLastUpdatedWith, value)
	}
}

func toDomainLastUpdatedWith(value string) (user.LastUpdatedWith, error) {
	switch value {
	case dbLastUpdatedWithCreateEndpoint:
		return user.LastUpdatedWithCreateEndpoint, nil
	case dbLastUpdatedWithConfigCallCreation:
		return user.LastUpdatedWithConfigCallCreation, nil
	case dbLastUpdatedWithUpdateEndpoint:
		return user.LastUpdatedWithUpdateEndpoint, nil
	default:
		return "", fmt.Errorf("postgres: unknown last_updated_with value %q", value)
	}
}
