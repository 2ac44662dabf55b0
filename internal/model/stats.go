package model

import "time"

// StatsAllTimeId 全量统计桶的 ID
const StatsAllTimeId int64 = -1

// Stats 使用统计
// 按 全量 / 年 / 月 / 日 四个粒度分桶，Id = YY*10000 + MM*100 + DD，年桶 MM=DD=0，月桶 DD=0
// Version 用于乐观并发控制
type Stats struct {
	Id                int64     `gorm:"column:id;primaryKey;autoIncrement:false;comment:统计桶id" json:"id"`
	Messages          int64     `gorm:"column:messages;not null;default:0" json:"messages"`
	MessagesSizeBytes int64     `gorm:"column:messages_size_bytes;not null;default:0" json:"messages_size_bytes"`
	Files             int64     `gorm:"column:files;not null;default:0" json:"files"`
	FilesSizeBytes    int64     `gorm:"column:files_size_bytes;not null;default:0" json:"files_size_bytes"`
	Devices           int64     `gorm:"column:devices;not null;default:0" json:"devices"`
	Sessions          int64     `gorm:"column:sessions;not null;default:0" json:"sessions"`
	Version           int64     `gorm:"column:version;not null;default:0;comment:乐观锁版本" json:"version"`
	DateCreatedUtc    time.Time `gorm:"column:date_created_utc;not null" json:"date_created_utc"`
}

// TableName 指定表名
func (Stats) TableName() string {
	return "stats"
}

// StatMonth 某月的统计
type StatMonth struct {
	Month string  `json:"month"`
	Days  []Stats `json:"days"`
}

// StatYear 某年的统计
type StatYear struct {
	Year   string      `json:"year"`
	Months []StatMonth `json:"months"`
}
