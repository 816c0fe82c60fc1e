package user

import "errors"

var (
	// ErrInvalidUserID はユーザー ID が不正な場合に返却されます。
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrCorruptUserID はストアに保存された ID が復元不能な場合に返却されます。
	// データ破損を示すサーバー側のエラーです。
	ErrCorruptUserID = errors.New("stored user id is corrupt")
	// ErrInvalidName は表示名が不正な場合に返却されます。
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidUserType はユーザー種別が不正な場合に返却されます。
	ErrInvalidUserType = errors.New("invalid user type")
	// ErrInvalidLastUpdatedWith は書き込み元種別が不正な場合に返却されます。
	ErrInvalidLastUpdatedWith = errors.New("invalid last-updated-with value")
	// ErrInvalidPageSize はページサイズが不正な場合に返却されます。
	ErrInvalidPageSize = errors.New("invalid page size")
	// ErrInvalidPageToken はページネーショントークンが不正な場合に返却されます。
	ErrInvalidPageToken = errors.New("invalid page token")
)
