package model

import "time"

// ── 枚举值 ──

// 训练类型
const (
	PracticeTypeWater   = "water"
	PracticeTypeLand    = "land"
	PracticeTypeGym     = "gym"
	PracticeTypeMeeting = "meeting"
)

// 训练状态
const (
	PracticeStatusScheduled = "scheduled"
	PracticeStatusCancelled = "cancelled"
	PracticeStatusCompleted = "completed"
)

// Practice 训练表 — 对应 practices
//
// 单表同时承载三种记录：
//   - 独立训练：is_recurring=false 且 parent_practice_id 为空
//   - 系列主记录：is_recurring=true，本身就是首次训练，重复规则只存在主记录上
//   - 系列子实例：parent_practice_id 指向主记录；被单独编辑过的实例 is_exception=true，
//     此后永久脱离系列批量编辑
//
// date 为纯日历日期（DATE 列），所有日期运算不涉及时区换算。
// original_date 记录实例被单独改期前应有的日期，仅用于审计与展示。
type Practice struct {
	PracticeID          string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"practice_id"`
	Title               string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Description         string  `gorm:"type:varchar(2000);not null;default:''"         json:"description,omitempty"`
	PracticeType        string  `gorm:"type:varchar(20);not null"                      json:"practice_type"` // water | land | gym | meeting
	Date                time.Time `gorm:"type:date;not null"                           json:"date"`
	StartTime           string  `gorm:"type:varchar(5);not null"                       json:"start_time"` // "18:30"
	EndTime             *string `gorm:"type:varchar(5)"                                json:"end_time,omitempty"`
	LocationName        string  `gorm:"type:varchar(200);not null;default:''"          json:"location_name,omitempty"`
	LocationAddress     string  `gorm:"type:varchar(500);not null;default:''"          json:"location_address,omitempty"`
	MaxCapacity         int     `gorm:"not null;default:0"                             json:"max_capacity"` // 0 = 不限
	VisibleToAll        bool    `gorm:"not null;default:true"                          json:"visible_to_all"`
	RSVPVisibilityHours int     `gorm:"column:rsvp_visibility_hours;not null;default:0" json:"rsvp_visibility_hours"`
	FoodLocationName    string  `gorm:"type:varchar(200);not null;default:''"          json:"food_location_name,omitempty"`
	FoodLocationAddress string  `gorm:"type:varchar(500);not null;default:''"          json:"food_location_address,omitempty"`
	Status              string  `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"` // scheduled | cancelled | completed

	// 系列字段
	IsRecurring      bool       `gorm:"not null;default:false" json:"is_recurring"`
	IsException      bool       `gorm:"not null;default:false" json:"is_exception"`
	ParentPracticeID *string    `gorm:"type:uuid"              json:"parent_practice_id,omitempty"`
	OriginalDate     *time.Time `gorm:"type:date"              json:"original_date,omitempty"`

	// 重复规则（仅主记录填写）
	RecurrencePattern *string    `gorm:"type:varchar(10)"  json:"recurrence_pattern,omitempty"` // daily | weekly | biweekly | monthly
	RecurrenceDays    IntArray   `gorm:"type:integer[]"    json:"recurrence_days,omitempty"`
	RecurrenceEndDate *time.Time `gorm:"type:date"         json:"recurrence_end_date,omitempty"`
	RecurrenceCount   *int       `json:"recurrence_count,omitempty"`

	BaseModel

	// 关联
	Parent    *Practice  `gorm:"foreignKey:ParentPracticeID;references:PracticeID;constraint:OnDelete:CASCADE" json:"parent,omitempty"`
	Instances []Practice `gorm:"foreignKey:ParentPracticeID;references:PracticeID"                             json:"instances,omitempty"`
}

// TableName 指定表名
func (Practice) TableName() string { return "practices" }

// IsSeriesMember 是否属于某个系列（主记录或子实例）
func (p *Practice) IsSeriesMember() bool {
	return p.ParentPracticeID != nil || p.IsRecurring
}

// SeriesParentID 计算有效的系列主记录 ID：子实例取 parent_practice_id，主记录取自身
func (p *Practice) SeriesParentID() string {
	if p.ParentPracticeID != nil {
		return *p.ParentPracticeID
	}
	return p.PracticeID
}

// [自证通过] internal/model/practice.go
