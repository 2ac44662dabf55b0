package request

// NewSessionRequest 创建会话请求
// 使用位置:
//   - handler/app_handler.go: NewSession, NewLiteSession
type NewSessionRequest struct {
	Id  string `json:"id" binding:"required,session_id"`
	Id2 string `json:"id2" binding:"required,session_id"`
}

// MessagesRequest 增量拉取消息
// 会话不存在或校验失败时返回空列表，所以这里不做必填校验
type MessagesRequest struct {
	Id   string `json:"id"`
	Id2  string `json:"id2"`
	From *int64 `json:"from"`
}

// LitePollRequest lite 客户端轮询
type LitePollRequest struct {
	Id   string `json:"id" binding:"required,session_id"`
	Id2  string `json:"id2" binding:"required,session_id"`
	From *int64 `json:"from"`
}

// SessionRequest 需要会话校验的 lite 操作
// 使用位置:
//   - handler/lite_handler.go: NewShareToken, CancelShareToken, EraseSession
type SessionRequest struct {
	SessionId           string `json:"SessionId" form:"SessionId" binding:"required"`
	SessionVerification string `json:"SessionVerification" form:"SessionVerification" binding:"required"`
}

// ConnectRequest 配对码兑换，兼容 Token 与 token 两种写法
type ConnectRequest struct {
	Token    *int64 `json:"Token"`
	TokenAlt *int64 `json:"token"`
}

// Value 取出配对码，两个字段都没有时返回 0
func (r ConnectRequest) Value() int64 {
	if r.Token != nil {
		return *r.Token
	}
	if r.TokenAlt != nil {
		return *r.TokenAlt
	}
	return 0
}
