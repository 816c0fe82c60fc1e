package postgres

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ogurasousui/catalog-user-directory/internal/core/user"
)

// pageTokenVersion はページトークンのバージョンタグです。未知のバージョンは
// 部分的に解釈せず拒否することで、将来のトークン形式変更に備えます。
const pageTokenVersion = "1"

const pageTokenSeparator = "&"

// encodePageToken はページ最終行の (created_at, id) を不透明なトークンに
// 変換します。平文は "1&<unix micros>&<id>" で、base64url(パディング無し)で
// 包んで URL クエリに安全な形にします。
func encodePageToken(createdAt time.Time, id user.UserID) string {
	payload := strings.Join([]string{
		pageTokenVersion,
		strconv.FormatInt(createdAt.UnixMicro(), 10),
		id.String(),
	}, pageTokenSeparator)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// decodePageToken はトークンを (created_at, id) に復元します。
// 復元した id は保存形式の文字列のままキーセット述語に使用します。
func decodePageToken(token string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: %v", user.ErrInvalidPageToken, err)
	}

	parts := strings.SplitN(string(raw), pageTokenSeparator, 3)
	if len(parts) != 3 {
		return time.Time{}, "", fmt.Errorf("%w: malformed payload", user.ErrInvalidPageToken)
	}

	if parts[0] != pageTokenVersion {
		return time.Time{}, "", fmt.Errorf("%w: unsupported version %q", user.ErrInvalidPageToken, parts[0])
	}

	micros, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("%w: malformed timestamp", user.ErrInvalidPageToken)
	}

	if parts[2] == "" {
		return time.Time{}, "", fmt.Errorf("%w: missing id", user.ErrInvalidPageToken)
	}

	return time.UnixMicro(micros).UTC(), parts[2], nil
}
