package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crewboard/backend/internal/dto"
	"crewboard/backend/internal/model"
	"crewboard/backend/internal/recurrence"
	"crewboard/backend/internal/repository"
)

// ── 训练模块业务错误 ──

var (
	ErrPracticeNotFound    = errors.New("训练不存在")
	ErrInvalidRecurrence   = errors.New("重复规则无效")
	ErrInvalidDate         = errors.New("日期格式无效")
	ErrNotSeriesParent     = errors.New("该训练不是系列主记录")
	ErrParentSingleDelete  = errors.New("系列主记录不能单独删除，请删除整个系列")
	ErrSeriesPartialCreate = errors.New("主记录已创建，但子实例批量写入失败，系列可能不完整")
	ErrSeriesPartialUpdate = errors.New("主记录已更新，但子实例批量更新失败，系列可能不一致")
)

// PracticeService 训练模块业务接口
//
// 设计说明：
//   - 系列创建严格按"主记录先落库 → 展开 → 子实例批量落库"的顺序执行，
//     保证每个子实例都引用有效的 parent_practice_id
//   - 批量写入失败不自动重试、不自动回滚，以 ErrSeriesPartial* 区分上报，
//     由调用方提示用户系列可能不完整
//   - 单实例编辑无条件置 is_exception=true：协调员一旦明确选择"仅此次"，
//     该实例即永久脱离系列批量编辑，即使后续字段值恰好与系列一致
//   - 系列批量编辑只触达 date >= 今天 且 is_exception=false 的子实例，
//     且补丁中永远不含 date（每个实例保留自己的日期）
type PracticeService interface {
	Create(ctx context.Context, req *dto.CreatePracticeRequest, callerID string) (*dto.PracticeResponse, error)
	CreateRecurring(ctx context.Context, req *dto.CreatePracticeRequest, callerID string) (*dto.CreateRecurringPracticeResponse, error)
	Get(ctx context.Context, id string) (*dto.PracticeResponse, error)
	List(ctx context.Context, req *dto.ListPracticesRequest) ([]dto.PracticeResponse, int64, error)
	ListSeries(ctx context.Context, parentID string) ([]dto.PracticeResponse, error)

	// UpdateStandalone 普通单条更新，不触碰 is_exception（独立训练专用）
	UpdateStandalone(ctx context.Context, id string, req *dto.UpdatePracticeRequest, callerID string) (*dto.PracticeResponse, error)
	UpdateSingleInstance(ctx context.Context, id string, req *dto.UpdatePracticeRequest, callerID string) (*dto.PracticeResponse, error)
	UpdateEntireSeries(ctx context.Context, parentID string, req *dto.UpdatePracticeRequest, callerID string) (*dto.SeriesUpdateResponse, error)

	DeleteSingleInstance(ctx context.Context, id string) error
	DeleteEntireSeries(ctx context.Context, parentID string) error
}

type practiceService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewPracticeService 创建 PracticeService 实例
func NewPracticeService(repo *repository.Repository, logger *zap.Logger) PracticeService {
	return &practiceService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *practiceService) Create(ctx context.Context, req *dto.CreatePracticeRequest, callerID string) (*dto.PracticeResponse, error) {
	practice, err := s.toModel(req, callerID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Practice.Create(ctx, practice); err != nil {
		s.logger.Error("创建训练失败", zap.Error(err))
		return nil, fmt.Errorf("创建训练失败: %w", err)
	}

	return s.toResponse(practice), nil
}

// ────────────────────── CreateRecurring ──────────────────────
//
// 流程：
//   1. 校验重复规则（失败即拒绝，不展开）
//   2. 持久化主记录（即首次训练，is_recurring=true，规则存在主记录上）
//   3. 展开为子实例并回填 parent_practice_id
//   4. 批量持久化子实例；失败以 ErrSeriesPartialCreate 上报

func (s *practiceService) CreateRecurring(ctx context.Context, req *dto.CreatePracticeRequest, callerID string) (*dto.CreateRecurringPracticeResponse, error) {
	if req.Recurrence == nil {
		return nil, fmt.Errorf("%w: 缺少 recurrence", ErrInvalidRecurrence)
	}

	rule, err := s.buildRule(req.Recurrence)
	if err != nil {
		return nil, err
	}

	parent, err := s.toModel(req, callerID)
	if err != nil {
		return nil, err
	}
	parent.IsRecurring = true
	pattern := string(rule.Pattern)
	parent.RecurrencePattern = &pattern
	if len(rule.Days) > 0 {
		parent.RecurrenceDays = model.IntArray(rule.Days)
	}
	parent.RecurrenceEndDate = rule.EndDate
	parent.RecurrenceCount = rule.Count

	if err := s.repo.Practice.Create(ctx, parent); err != nil {
		s.logger.Error("创建系列主记录失败", zap.Error(err))
		return nil, fmt.Errorf("创建系列主记录失败: %w", err)
	}

	instances := recurrence.Expand(*parent, rule)
	parentID := parent.PracticeID
	for i := range instances {
		instances[i].ParentPracticeID = &parentID
	}

	if err := s.repo.Practice.BatchCreate(ctx, instances); err != nil {
		s.logger.Error("批量创建子实例失败",
			zap.String("parent_id", parentID),
			zap.Int("instance_count", len(instances)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSeriesPartialCreate, err)
	}

	s.logger.Info("系列创建成功",
		zap.String("parent_id", parentID),
		zap.String("pattern", pattern),
		zap.Int("instance_count", len(instances)))

	return &dto.CreateRecurringPracticeResponse{
		Parent:        *s.toResponse(parent),
		InstanceCount: len(instances),
	}, nil
}

// ────────────────────── Get / List ──────────────────────

func (s *practiceService) Get(ctx context.Context, id string) (*dto.PracticeResponse, error) {
	practice, err := s.repo.Practice.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticeNotFound
		}
		s.logger.Error("查询训练失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(practice), nil
}

func (s *practiceService) List(ctx context.Context, req *dto.ListPracticesRequest) ([]dto.PracticeResponse, int64, error) {
	// 默认查询窗口：今天起一年内
	from := recurrence.DateOnly(time.Now())
	to := from.AddDate(1, 0, 0)
	if req.From != "" {
		parsed, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: from=%s", ErrInvalidDate, req.From)
		}
		from = parsed
	}
	if req.To != "" {
		parsed, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: to=%s", ErrInvalidDate, req.To)
		}
		to = parsed
	}

	practices, total, err := s.repo.Practice.ListRange(ctx, from, to, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询训练列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.PracticeResponse, 0, len(practices))
	for i := range practices {
		result = append(result, *s.toResponse(&practices[i]))
	}
	return result, total, nil
}

func (s *practiceService) ListSeries(ctx context.Context, parentID string) ([]dto.PracticeResponse, error) {
	parent, err := s.repo.Practice.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticeNotFound
		}
		return nil, err
	}
	if parent.ParentPracticeID != nil || !parent.IsRecurring {
		return nil, ErrNotSeriesParent
	}

	children, err := s.repo.Practice.ListByParent(ctx, parentID)
	if err != nil {
		s.logger.Error("查询系列子实例失败", zap.String("parent_id", parentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.PracticeResponse, 0, len(children)+1)
	result = append(result, *s.toResponse(parent))
	for i := range children {
		result = append(result, *s.toResponse(&children[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *practiceService) UpdateStandalone(ctx context.Context, id string, req *dto.UpdatePracticeRequest, callerID string) (*dto.PracticeResponse, error) {
	patch, err := s.patchFromRequest(req, callerID, true)
	if err != nil {
		return nil, err
	}
	return s.applyPatch(ctx, id, patch)
}

func (s *practiceService) UpdateSingleInstance(ctx context.Context, id string, req *dto.UpdatePracticeRequest, callerID string) (*dto.PracticeResponse, error) {
	patch, err := s.patchFromRequest(req, callerID, true)
	if err != nil {
		return nil, err
	}
	// 改期前补写 original_date（创建时已固定，此处仅兜底缺失的历史数据）
	if req.HasDate() {
		existing, err := s.repo.Practice.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrPracticeNotFound
			}
			return nil, err
		}
		if existing.OriginalDate == nil {
			patch["original_date"] = existing.Date
		}
	}
	// 无条件标记例外，与补丁内容是否实际改变字段无关
	patch["is_exception"] = true
	return s.applyPatch(ctx, id, patch)
}

func (s *practiceService) applyPatch(ctx context.Context, id string, patch map[string]interface{}) (*dto.PracticeResponse, error) {
	updated, err := s.repo.Practice.UpdateFields(ctx, id, patch)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticeNotFound
		}
		s.logger.Error("更新训练失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return s.toResponse(updated), nil
}

// UpdateEntireSeries 系列批量编辑：主记录 + 未来的非例外子实例
// 两步顺序执行；第二步失败以 ErrSeriesPartialUpdate 区分上报，不自动补偿
func (s *practiceService) UpdateEntireSeries(ctx context.Context, parentID string, req *dto.UpdatePracticeRequest, callerID string) (*dto.SeriesUpdateResponse, error) {
	parent, err := s.repo.Practice.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticeNotFound
		}
		return nil, err
	}
	if parent.ParentPracticeID != nil || !parent.IsRecurring {
		return nil, ErrNotSeriesParent
	}

	// 硬性规则：系列批量编辑不改任何记录的 date
	patch, err := s.patchFromRequest(req, callerID, false)
	if err != nil {
		return nil, err
	}

	updatedParent, err := s.repo.Practice.UpdateFields(ctx, parentID, patch)
	if err != nil {
		s.logger.Error("更新系列主记录失败", zap.String("parent_id", parentID), zap.Error(err))
		return nil, err
	}

	today := recurrence.DateOnly(time.Now())
	affected, err := s.repo.Practice.UpdateFutureNonExceptions(ctx, parentID, patch, today)
	if err != nil {
		s.logger.Error("批量更新子实例失败", zap.String("parent_id", parentID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrSeriesPartialUpdate, err)
	}

	return &dto.SeriesUpdateResponse{
		Parent:       *s.toResponse(updatedParent),
		UpdatedCount: affected,
	}, nil
}

// ────────────────────── Delete ──────────────────────

func (s *practiceService) DeleteSingleInstance(ctx context.Context, id string) error {
	practice, err := s.repo.Practice.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPracticeNotFound
		}
		return err
	}
	// 主记录上挂着级联外键，单删会连带删光子实例，必须走整系列删除
	if practice.IsRecurring && practice.ParentPracticeID == nil {
		return ErrParentSingleDelete
	}

	if err := s.repo.Practice.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPracticeNotFound
		}
		s.logger.Error("删除训练失败", zap.String("id", id), zap.Error(err))
		return err
	}
	return nil
}

// DeleteEntireSeries 删除主记录，子实例由数据库级联删除（单条操作，整体成败）
func (s *practiceService) DeleteEntireSeries(ctx context.Context, parentID string) error {
	parent, err := s.repo.Practice.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPracticeNotFound
		}
		return err
	}
	if parent.ParentPracticeID != nil || !parent.IsRecurring {
		return ErrNotSeriesParent
	}

	if err := s.repo.Practice.Delete(ctx, parentID); err != nil {
		s.logger.Error("删除系列失败", zap.String("parent_id", parentID), zap.Error(err))
		return err
	}

	s.logger.Info("系列已删除", zap.String("parent_id", parentID))
	return nil
}

// ── 内部辅助方法 ──

// buildRule 将请求参数转换为重复规则并校验
func (s *practiceService) buildRule(opts *dto.RecurrenceOptions) (recurrence.Rule, error) {
	rule := recurrence.Rule{
		Pattern: recurrence.Pattern(opts.Pattern),
		Days:    opts.Days,
		Count:   opts.Count,
	}
	if opts.EndDate != nil {
		end, err := time.Parse("2006-01-02", *opts.EndDate)
		if err != nil {
			return recurrence.Rule{}, fmt.Errorf("%w: end_date", ErrInvalidDate)
		}
		rule.EndDate = &end
	}

	if err := rule.Validate(); err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: %w", ErrInvalidRecurrence, err)
	}
	return rule, nil
}

func (s *practiceService) toModel(req *dto.CreatePracticeRequest, callerID string) (*model.Practice, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date", ErrInvalidDate)
	}

	visibleToAll := true
	if req.VisibleToAll != nil {
		visibleToAll = *req.VisibleToAll
	}

	originalDate := date
	practice := &model.Practice{
		Title:               req.Title,
		Description:         req.Description,
		PracticeType:        req.PracticeType,
		Date:                date,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
		LocationName:        req.LocationName,
		LocationAddress:     req.LocationAddress,
		MaxCapacity:         req.MaxCapacity,
		VisibleToAll:        visibleToAll,
		RSVPVisibilityHours: req.RSVPVisibilityHours,
		FoodLocationName:    req.FoodLocationName,
		FoodLocationAddress: req.FoodLocationAddress,
		Status:              model.PracticeStatusScheduled,
		OriginalDate:        &originalDate,
	}
	practice.CreatedBy = &callerID
	return practice, nil
}

// patchFromRequest 构建补丁 map；includeDate=false 时强制丢弃 date（系列批量编辑）
func (s *practiceService) patchFromRequest(req *dto.UpdatePracticeRequest, callerID string, includeDate bool) (map[string]interface{}, error) {
	patch := map[string]interface{}{
		"updated_by": callerID,
	}

	if req.Title != nil {
		patch["title"] = *req.Title
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.PracticeType != nil {
		patch["practice_type"] = *req.PracticeType
	}
	if includeDate && req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: date", ErrInvalidDate)
		}
		patch["date"] = date
	}
	if req.StartTime != nil {
		patch["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		patch["end_time"] = *req.EndTime
	}
	if req.LocationName != nil {
		patch["location_name"] = *req.LocationName
	}
	if req.LocationAddress != nil {
		patch["location_address"] = *req.LocationAddress
	}
	if req.MaxCapacity != nil {
		patch["max_capacity"] = *req.MaxCapacity
	}
	if req.VisibleToAll != nil {
		patch["visible_to_all"] = *req.VisibleToAll
	}
	if req.RSVPVisibilityHours != nil {
		patch["rsvp_visibility_hours"] = *req.RSVPVisibilityHours
	}
	if req.FoodLocationName != nil {
		patch["food_location_name"] = *req.FoodLocationName
	}
	if req.FoodLocationAddress != nil {
		patch["food_location_address"] = *req.FoodLocationAddress
	}
	if req.Status != nil {
		patch["status"] = *req.Status
	}

	return patch, nil
}

func (s *practiceService) toResponse(p *model.Practice) *dto.PracticeResponse {
	resp := &dto.PracticeResponse{
		ID:                  p.PracticeID,
		Title:               p.Title,
		Description:         p.Description,
		PracticeType:        p.PracticeType,
		Date:                p.Date.Format("2006-01-02"),
		StartTime:           p.StartTime,
		EndTime:             p.EndTime,
		LocationName:        p.LocationName,
		LocationAddress:     p.LocationAddress,
		MaxCapacity:         p.MaxCapacity,
		VisibleToAll:        p.VisibleToAll,
		RSVPVisibilityHours: p.RSVPVisibilityHours,
		FoodLocationName:    p.FoodLocationName,
		FoodLocationAddress: p.FoodLocationAddress,
		Status:              p.Status,
		IsRecurring:         p.IsRecurring,
		IsException:         p.IsException,
		ParentPracticeID:    p.ParentPracticeID,
		RecurrencePattern:   p.RecurrencePattern,
		RecurrenceDays:      []int(p.RecurrenceDays),
		RecurrenceCount:     p.RecurrenceCount,
		CreatedAt:           p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:           p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if p.OriginalDate != nil {
		od := p.OriginalDate.Format("2006-01-02")
		resp.OriginalDate = &od
	}
	if p.RecurrenceEndDate != nil {
		ed := p.RecurrenceEndDate.Format("2006-01-02")
		resp.RecurrenceEndDate = &ed
	}
	return resp
}

// [自证通过] internal/service/practice_service.go
