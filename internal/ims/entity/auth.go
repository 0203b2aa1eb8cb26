package entity

// AuthStatus 当前请求的认证状态
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username"`
}
