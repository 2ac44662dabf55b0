// Package model 定义数据库实体模型
// 本文件定义消息模型，消息内容由客户端加密，服务端只做存储
package model

// Message 消息模型
// 对应数据库 message 表，插入后不可修改，会话销毁时批量删除
type Message struct {
	// Id 消息雪花ID（字符串形式）
	Id string `gorm:"column:id;primaryKey;type:varchar(32);comment:消息id" json:"id"`

	// SessionId 所属会话
	SessionId string `gorm:"column:session_id;index:idx_message_session_epoch,priority:1;type:varchar(64);not null;comment:会话id" json:"session_id"`

	// SessionIdVerification 发送方提供的会话校验码（可选）
	SessionIdVerification *string `gorm:"column:session_id_verification;type:varchar(64);comment:会话校验码" json:"session_id_verification"`

	// SocketConnectionId 发送方连接 ID（可选），通知消息会记录触发它的连接
	SocketConnectionId *string `gorm:"column:socket_connection_id;type:varchar(64);comment:来源连接id" json:"socket_connection_id"`

	// EncryptionPublicKeyAlias 加密所用公钥别名（可选）
	EncryptionPublicKeyAlias *string `gorm:"column:encryption_public_key_alias;type:varchar(128);comment:公钥别名" json:"encryption_public_key_alias"`

	// Text 消息正文（密文或系统通知）
	Text string `gorm:"column:text;type:text;not null;comment:消息内容" json:"text"`

	// FileName 附件在上传目录中的文件名
	FileName *string `gorm:"column:file_name;type:varchar(255);comment:文件名" json:"file_name"`

	// DateSent 发送时间，格式 2006-01-02T15:04:05 (UTC)
	DateSent string `gorm:"column:date_sent;type:varchar(32);not null;comment:发送时间" json:"date_sent"`

	// HasFile 是否带附件
	HasFile bool `gorm:"column:has_file;not null;default:false;comment:是否有附件" json:"has_file"`

	// FileSizeBytes 附件大小
	FileSizeBytes *int64 `gorm:"column:file_size_bytes;comment:附件大小" json:"file_size_bytes"`

	// IsNotification 是否为系统通知（设备加入/离开）
	IsNotification bool `gorm:"column:is_notification;not null;default:false;comment:是否系统通知" json:"is_notification"`

	// DateSentEpoch 发送时间（Unix 秒），用于增量拉取的 from 游标
	DateSentEpoch int64 `gorm:"column:date_sent_epoch;index:idx_message_session_epoch,priority:2;not null;comment:发送时间戳" json:"date_sent_epoch"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// TimeLayout 消息时间的字符串格式
const TimeLayout = "2006-01-02T15:04:05"
