package request

// PostMessageRequest 发送消息，JSON 与 multipart 表单共用
type PostMessageRequest struct {
	SessionId                string `json:"SessionId" form:"SessionId" binding:"required"`
	SessionVerification      string `json:"SessionVerification" form:"SessionVerification"`
	SocketConnectionId       string `json:"SocketConnectionId" form:"SocketConnectionId"`
	EncryptionPublicKeyAlias string `json:"EncryptionPublicKeyAlias" form:"EncryptionPublicKeyAlias"`
	ComposerText             string `json:"ComposerText" form:"ComposerText"`
}

// MessageRawRequest 获取单条消息正文
type MessageRawRequest struct {
	MessageId string `json:"messageId" binding:"required"`
	SessionId string `json:"sessionId" binding:"required"`
}

// SaveKeyRequest 保存会话公钥
type SaveKeyRequest struct {
	SessionId           string `json:"sessionId" binding:"required"`
	SessionVerification string `json:"sessionVerification" binding:"required"`
	Alias               string `json:"alias" binding:"required"`
	PublicKey           string `json:"publicKey" binding:"required"`
}

// CliUploadRequest 命令行上传的可选表单字段
type CliUploadRequest struct {
	EncryptionPublicKeyAlias string `form:"EncryptionPublicKeyAlias"`
	ComposerText             string `form:"ComposerText"`
}
