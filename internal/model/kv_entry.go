package model

import "time"

// KvEntry 键值表，未启用 Redis 时承载配对码、连接反向索引和缓存
type KvEntry struct {
	Key       string     `gorm:"column:kv_key;primaryKey;type:varchar(191)"`
	Value     string     `gorm:"column:kv_value;type:text;not null"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
}

// TableName 指定表名
func (KvEntry) TableName() string {
	return "kv_entry"
}

// ShareToken 配对码 -> 会话
type ShareToken struct {
	Id        int64  `json:"Id"`
	SessionId string `json:"SessionId"`
}

// SessionShareToken 会话 -> 配对码
type SessionShareToken struct {
	Token int64 `json:"Token"`
}

// SessionMetaByConnectionId 连接 -> 会话
type SessionMetaByConnectionId struct {
	SessionId string `json:"SessionId"`
}
