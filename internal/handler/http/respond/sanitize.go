package respond

import (
	"regexp"
)

var (
	// Authorizationヘッダに載るベアラ認証情報
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_]{8,}`)

	// 管理トークン(ヘッダ値がそのままエラーに混入するケース)
	adminTokenPattern = regexp.MustCompile(`(?i)x-admin-token:\s*\S+`)

	// データベースパスワードパターン(DSN内)
	dbPasswordPattern = regexp.MustCompile(`://([^:]+):([^@]+)@`)
)

// SanitizeError は機密情報をマスクしたエラーメッセージを返す
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	// 認証情報のマスク
	msg = bearerPattern.ReplaceAllString(msg, "Bearer ****")
	msg = adminTokenPattern.ReplaceAllString(msg, "X-Admin-Token: ****")

	// DBパスワードのマスク
	msg = dbPasswordPattern.ReplaceAllString(msg, "://$1:****@")

	return msg
}
