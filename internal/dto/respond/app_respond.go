package respond

import "just_sending_server/internal/model"

// ConnectRespond 配对码兑换结果
type ConnectRespond struct {
	SessionId           string `json:"sessionId"`
	SessionVerification string `json:"sessionVerification"`
	IsLiteSession       bool   `json:"isLiteSession"`
}

// LitePollRespond lite 轮询结果
type LitePollRespond struct {
	HasSession bool            `json:"hasSession"`
	HasToken   bool            `json:"hasToken"`
	Token      *string         `json:"token"`
	Messages   []model.Message `json:"messages"`
}

type ShareTokenRespond struct {
	Token string `json:"token"`
}

type MessageRawRespond struct {
	Content string `json:"Content"`
}

type IdRespond struct {
	Id string `json:"id"`
}

// CliUploadRespond 命令行上传结果
type CliUploadRespond struct {
	SessionId   string `json:"session_id"`
	MessageId   string `json:"message_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	DownloadUrl string `json:"download_url"`
}
