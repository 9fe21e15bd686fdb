package recurrence

import (
	"errors"
	"testing"
	"time"

	"crewboard/backend/internal/model"
)

// ── 测试辅助 ──

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }

func testTemplate(anchor time.Time) model.Practice {
	return model.Practice{
		PracticeID:   "parent-001",
		Title:        "晨间水上训练",
		PracticeType: model.PracticeTypeWater,
		Date:         anchor,
		StartTime:    "06:30",
		LocationName: "东湖码头",
		MaxCapacity:  22,
		VisibleToAll: true,
		Status:       model.PracticeStatusScheduled,
		IsRecurring:  true,
	}
}

func extractDates(instances []model.Practice) []time.Time {
	dates := make([]time.Time, len(instances))
	for i := range instances {
		dates[i] = instances[i].Date
	}
	return dates
}

func assertDates(t *testing.T, got []time.Time, want ...time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("期望 %d 个实例，实际 %d 个: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("第 %d 个实例期望 %s，实际 %s", i, want[i].Format("2006-01-02"), got[i].Format("2006-01-02"))
		}
	}
}

// ── Validate 测试 ──

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr error
	}{
		{"daily 合法", Rule{Pattern: PatternDaily, Count: intPtr(5)}, nil},
		{"weekly 合法", Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, Count: intPtr(5)}, nil},
		{"monthly 无终止条件也合法", Rule{Pattern: PatternMonthly}, nil},
		{"未知模式", Rule{Pattern: "yearly"}, ErrInvalidPattern},
		{"weekly 空 days", Rule{Pattern: PatternWeekly, Count: intPtr(5)}, ErrEmptyDays},
		{"biweekly 空 days", Rule{Pattern: PatternBiweekly, EndDate: timePtr(date(2024, 7, 1))}, ErrEmptyDays},
		{"星期越界", Rule{Pattern: PatternWeekly, Days: []int{7}}, ErrInvalidDay},
		{"星期为负", Rule{Pattern: PatternWeekly, Days: []int{-1}}, ErrInvalidDay},
		{"end_date 与 count 同时指定", Rule{Pattern: PatternDaily, EndDate: timePtr(date(2024, 7, 1)), Count: intPtr(3)}, ErrBothEndConditions},
		{"count 为 0", Rule{Pattern: PatternDaily, Count: intPtr(0)}, ErrInvalidCount},
		{"count 超上限", Rule{Pattern: PatternDaily, Count: intPtr(53)}, ErrInvalidCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("期望 %v，实际: %v", tt.wantErr, err)
			}
		})
	}
}

// ── Expand 基本场景 ──

func TestExpand_WeeklyCount(t *testing.T) {
	// 锚定 2024-06-03（周一），weekly 周一/三/五，count=5
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, Count: intPtr(5)}

	instances := Expand(testTemplate(anchor), rule)

	assertDates(t, extractDates(instances),
		date(2024, 6, 5), date(2024, 6, 7), date(2024, 6, 10),
		date(2024, 6, 12), date(2024, 6, 14),
	)
}

func TestExpand_BiweeklyEndDate(t *testing.T) {
	// 锚定 2024-06-03（周一），biweekly 周一，截止 2024-07-15 → 每隔一周的周一
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternBiweekly, Days: []int{1}, EndDate: timePtr(date(2024, 7, 15))}

	instances := Expand(testTemplate(anchor), rule)

	assertDates(t, extractDates(instances),
		date(2024, 6, 17), date(2024, 7, 1), date(2024, 7, 15),
	)
}

func TestExpand_DailyCount(t *testing.T) {
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternDaily, Count: intPtr(4)}

	instances := Expand(testTemplate(anchor), rule)

	assertDates(t, extractDates(instances),
		date(2024, 6, 4), date(2024, 6, 5), date(2024, 6, 6), date(2024, 6, 7),
	)
}

func TestExpand_DailyEndDate(t *testing.T) {
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternDaily, EndDate: timePtr(date(2024, 6, 10))}

	instances := Expand(testTemplate(anchor), rule)

	if len(instances) != 7 {
		t.Fatalf("期望 7 个实例（06-04 至 06-10），实际 %d 个", len(instances))
	}
	last := instances[len(instances)-1].Date
	if !last.Equal(date(2024, 6, 10)) {
		t.Errorf("最后一个实例应为截止日 06-10，实际 %s", last.Format("2006-01-02"))
	}
}

func TestExpand_MonthlySkipsShortMonths(t *testing.T) {
	// 锚定 2024-01-31，monthly count=3：二月（闰年 29 天）、四月、六月无 31 号，跳过
	anchor := date(2024, 1, 31)
	rule := Rule{Pattern: PatternMonthly, Count: intPtr(3)}

	instances := Expand(testTemplate(anchor), rule)

	assertDates(t, extractDates(instances),
		date(2024, 3, 31), date(2024, 5, 31), date(2024, 7, 31),
	)
}

func TestExpand_MonthlyMidMonth(t *testing.T) {
	// 15 号每个月都有，连续逐月
	anchor := date(2024, 1, 15)
	rule := Rule{Pattern: PatternMonthly, Count: intPtr(4)}

	instances := Expand(testTemplate(anchor), rule)

	assertDates(t, extractDates(instances),
		date(2024, 2, 15), date(2024, 3, 15), date(2024, 4, 15), date(2024, 5, 15),
	)
}

// ── 安全上限 ──

func TestExpand_NoEndConditionCapsAt52(t *testing.T) {
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternDaily}

	instances := Expand(testTemplate(anchor), rule)

	if len(instances) != MaxInstances {
		t.Errorf("无终止条件时应在 %d 个实例封顶，实际 %d 个", MaxInstances, len(instances))
	}
}

func TestExpand_EndDateNotCappedAt52(t *testing.T) {
	// 指定了 end_date 的系列不受 52 上限约束：
	// daily + 锚定日后 100 天的截止日 → 恰好 100 个实例
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternDaily, EndDate: timePtr(date(2024, 9, 11))}

	instances := Expand(testTemplate(anchor), rule)

	if len(instances) != 100 {
		t.Fatalf("期望 100 个实例，实际 %d 个", len(instances))
	}
	last := instances[len(instances)-1].Date
	if !last.Equal(date(2024, 9, 11)) {
		t.Errorf("最后一个实例应为截止日 2024-09-11，实际 %s", last.Format("2006-01-02"))
	}
}

func TestExpand_WeeklyEndDateBeyond52Occurrences(t *testing.T) {
	// weekly 周一/三/五 跑满 30 周 ≈ 90 个实例，同样不被 52 截断
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, EndDate: timePtr(date(2024, 12, 30))}

	instances := Expand(testTemplate(anchor), rule)

	if len(instances) <= MaxInstances {
		t.Fatalf("weekly + 远期 end_date 不应被 %d 上限截断，实际 %d 个", MaxInstances, len(instances))
	}
	last := instances[len(instances)-1].Date
	if !last.Equal(date(2024, 12, 30)) {
		t.Errorf("最后一个实例应为截止日 2024-12-30（周一），实际 %s", last.Format("2006-01-02"))
	}
}

func TestExpand_HorizonCapsMonthly(t *testing.T) {
	// monthly 无终止条件：2 年窗口内最多 24 个月
	anchor := date(2024, 1, 15)
	rule := Rule{Pattern: PatternMonthly}

	instances := Expand(testTemplate(anchor), rule)

	if len(instances) != 24 {
		t.Errorf("monthly 无终止条件应被 2 年窗口截断为 24 个，实际 %d 个", len(instances))
	}
	last := instances[len(instances)-1].Date
	if !last.Equal(date(2026, 1, 15)) {
		t.Errorf("最后一个实例应为 2026-01-15，实际 %s", last.Format("2006-01-02"))
	}
}

func TestExpand_EndDateBeyondHorizonIsBounded(t *testing.T) {
	// 截止日期远超 2 年窗口时，窗口先生效
	anchor := date(2024, 6, 3)
	rule := Rule{Pattern: PatternMonthly, EndDate: timePtr(date(2034, 6, 3))}

	instances := Expand(testTemplate(anchor), rule)

	horizon := date(2026, 6, 3)
	for _, inst := range instances {
		if inst.Date.After(horizon) {
			t.Errorf("实例 %s 超出 2 年安全窗口", inst.Date.Format("2006-01-02"))
		}
	}
}

// ── 可测性质 ──

func TestExpand_StrictlyIncreasingNoDuplicates(t *testing.T) {
	rules := []Rule{
		{Pattern: PatternDaily, Count: intPtr(10)},
		{Pattern: PatternWeekly, Days: []int{0, 2, 4, 6}, Count: intPtr(20)},
		{Pattern: PatternBiweekly, Days: []int{1, 5}, Count: intPtr(10)},
		{Pattern: PatternMonthly, Count: intPtr(12)},
	}

	for _, rule := range rules {
		instances := Expand(testTemplate(date(2024, 6, 3)), rule)
		for i := 1; i < len(instances); i++ {
			if !instances[i].Date.After(instances[i-1].Date) {
				t.Errorf("模式 %s: 日期未严格递增: %s → %s", rule.Pattern,
					instances[i-1].Date.Format("2006-01-02"), instances[i].Date.Format("2006-01-02"))
			}
		}
	}
}

func TestExpand_WeeklyRespectsDays(t *testing.T) {
	rule := Rule{Pattern: PatternWeekly, Days: []int{2, 4}, Count: intPtr(12)}

	instances := Expand(testTemplate(date(2024, 6, 3)), rule)

	for _, inst := range instances {
		wd := int(inst.Date.Weekday())
		if wd != 2 && wd != 4 {
			t.Errorf("实例 %s 的星期 %d 不在规则 days 中", inst.Date.Format("2006-01-02"), wd)
		}
	}
}

func TestExpand_BiweeklySameWeekdayFourteenDaysApart(t *testing.T) {
	rule := Rule{Pattern: PatternBiweekly, Days: []int{1, 3}, Count: intPtr(10)}

	instances := Expand(testTemplate(date(2024, 6, 3)), rule)

	// 同一星期桶内相邻实例必须相隔 14 天，绝不允许 7 天
	byWeekday := make(map[time.Weekday][]time.Time)
	for _, inst := range instances {
		byWeekday[inst.Date.Weekday()] = append(byWeekday[inst.Date.Weekday()], inst.Date)
	}
	for wd, dates := range byWeekday {
		for i := 1; i < len(dates); i++ {
			gap := dates[i].Sub(dates[i-1])
			if gap != 14*24*time.Hour {
				t.Errorf("星期 %v 桶内相邻实例间隔 %v，期望 14 天", wd, gap)
			}
		}
	}
}

func TestExpand_BiweeklyAnchoredToAnchorWeek(t *testing.T) {
	// 同样的规则、相邻两周的锚定日 → 两个系列的节奏错开一周
	rule := Rule{Pattern: PatternBiweekly, Days: []int{1}, Count: intPtr(3)}

	a := Expand(testTemplate(date(2024, 6, 3)), rule)
	b := Expand(testTemplate(date(2024, 6, 10)), rule)

	assertDates(t, extractDates(a), date(2024, 6, 17), date(2024, 7, 1), date(2024, 7, 15))
	assertDates(t, extractDates(b), date(2024, 6, 24), date(2024, 7, 8), date(2024, 7, 22))
}

func TestExpand_Deterministic(t *testing.T) {
	rule := Rule{Pattern: PatternWeekly, Days: []int{1, 3, 5}, Count: intPtr(15)}
	tmpl := testTemplate(date(2024, 6, 3))

	a := Expand(tmpl, rule)
	b := Expand(tmpl, rule)

	if len(a) != len(b) {
		t.Fatalf("两次展开数量不一致: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Date.Equal(b[i].Date) {
			t.Errorf("第 %d 个实例日期不一致: %s vs %s", i,
				a[i].Date.Format("2006-01-02"), b[i].Date.Format("2006-01-02"))
		}
	}
}

// ── 字段复制 ──

func TestExpand_InstanceFieldCopy(t *testing.T) {
	tmpl := testTemplate(date(2024, 6, 3))
	tmpl.Status = model.PracticeStatusCancelled // 模板状态不应传染给子实例
	pattern := string(PatternWeekly)
	tmpl.RecurrencePattern = &pattern
	tmpl.RecurrenceDays = model.IntArray{1}
	tmpl.RecurrenceCount = intPtr(3)

	instances := Expand(tmpl, Rule{Pattern: PatternWeekly, Days: []int{1}, Count: intPtr(3)})

	if len(instances) != 3 {
		t.Fatalf("期望 3 个实例，实际 %d 个", len(instances))
	}
	for i, inst := range instances {
		if inst.PracticeID != "" {
			t.Errorf("第 %d 个实例不应携带模板 ID", i)
		}
		if inst.Title != tmpl.Title || inst.StartTime != tmpl.StartTime || inst.MaxCapacity != tmpl.MaxCapacity {
			t.Errorf("第 %d 个实例未完整复制模板字段", i)
		}
		if inst.Status != model.PracticeStatusScheduled {
			t.Errorf("第 %d 个实例状态应重置为 scheduled，实际 %s", i, inst.Status)
		}
		if inst.IsRecurring || inst.IsException {
			t.Errorf("第 %d 个实例的系列标志应为 false", i)
		}
		if inst.OriginalDate == nil || !inst.OriginalDate.Equal(inst.Date) {
			t.Errorf("第 %d 个实例的 original_date 应等于 date", i)
		}
		if inst.RecurrencePattern != nil || inst.RecurrenceDays != nil || inst.RecurrenceCount != nil {
			t.Errorf("第 %d 个实例不应携带重复规则字段", i)
		}
	}
}
