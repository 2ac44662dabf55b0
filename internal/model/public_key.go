package model

import "time"

// PublicKey 会话公钥（JWK），持有别名的一方可以离线向会话加密上传
type PublicKey struct {
	Id            string    `gorm:"column:id;primaryKey;type:varchar(32);comment:公钥id" json:"id"`
	SessionId     string    `gorm:"column:session_id;index;type:varchar(64);not null;comment:会话id" json:"sessionId"`
	Alias         string    `gorm:"column:alias;type:varchar(128);not null;comment:公钥别名" json:"alias"`
	PublicKeyJson string    `gorm:"column:public_key_json;type:text;not null;comment:JWK" json:"publicKeyJson"`
	DateCreated   time.Time `gorm:"column:date_created;not null;comment:创建时间" json:"dateCreated"`
}

// TableName 指定表名
func (PublicKey) TableName() string {
	return "public_key"
}
