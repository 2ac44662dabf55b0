// Package model 定义数据库实体模型
// 本文件定义会话模型，一个会话代表一组临时加入的设备
package model

import (
	"encoding/json"
	"time"
)

// Session 会话模型
// 对应数据库 session 表
type Session struct {
	// Id 会话标识，32 位随机串，同时作为访问凭证
	Id string `gorm:"column:id;primaryKey;type:varchar(64);comment:会话id" json:"id"`

	// IdVerification 会话校验码，读取和修改会话时需要与 Id 一起提供
	IdVerification string `gorm:"column:id_verification;type:varchar(64);not null;comment:会话校验码" json:"-"`

	// DateCreated 创建时间，用于计算 TTL
	DateCreated time.Time `gorm:"column:date_created;not null;comment:创建时间" json:"dateCreated"`

	// IsLiteSession 轮询客户端会话，设备数归零时不自动销毁
	IsLiteSession bool `gorm:"column:is_lite_session;not null;default:false;comment:是否为轻量会话" json:"isLiteSession"`

	// ConnectionIdsJson 当前挂载的连接 ID 列表（JSON 数组，按加入顺序）
	// 整体读改写，没有行级锁
	ConnectionIdsJson string `gorm:"column:connection_ids_json;type:text;comment:连接id列表" json:"-"`
}

// TableName 指定表名
func (Session) TableName() string {
	return "session"
}

// ConnectionIds 解析连接 ID 列表，解析失败视为空
func (s *Session) ConnectionIds() []string {
	if s.ConnectionIdsJson == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s.ConnectionIdsJson), &ids); err != nil {
		return nil
	}
	return ids
}

// SetConnectionIds 写回连接 ID 列表
func (s *Session) SetConnectionIds(ids []string) {
	s.ConnectionIdsJson = EncodeConnectionIds(ids)
}

// EncodeConnectionIds 将连接 ID 列表编码为 JSON 数组
func EncodeConnectionIds(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}
