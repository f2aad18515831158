package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/xuri/excelize/v2"
)

// SummaryService 款式合规汇总（看板只读投影）
type SummaryService struct {
	*engine
}

// ComponentCompliance 款式下单个组件的合规情况
type ComponentCompliance struct {
	ComponentID      string     `json:"component_id"`
	Code             string     `json:"code"`
	Name             string     `json:"name"`
	Variant          string     `json:"variant"`
	ComponentStatus  string     `json:"component_status"`
	CompositionValid bool       `json:"composition_valid"`
	TUStatus         string     `json:"tu_status"`
	Inherited        bool       `json:"inherited"`
	CopiedFrom       *string    `json:"copied_from"`
	ExpiresAt        *time.Time `json:"expires_at"`
	BasePassing      bool       `json:"base_passing"`
	BulkPassing      bool       `json:"bulk_passing"`
	GarmentPassing   bool       `json:"garment_passing"`
}

// SLAItem 未完成的测试或验货及其截止状态
type SLAItem struct {
	Kind          string    `json:"kind"` // test/inspection
	ID            string    `json:"id"`
	Code          string    `json:"code"`
	Label         string    `json:"label"`
	DueDate       time.Time `json:"due_date"`
	Status        SLAState  `json:"status"`
	DaysRemaining int       `json:"days_remaining"`
}

// ComplianceSummary 款式合规汇总
type ComplianceSummary struct {
	StyleID        string                `json:"style_id"`
	StyleCode      string                `json:"style_code"`
	StyleName      string                `json:"style_name"`
	Stage          string                `json:"stage"`
	NextStage      string                `json:"next_stage"`
	Rush           bool                  `json:"rush"`
	Components     []ComponentCompliance `json:"components"`
	ApprovedCount  int                   `json:"approved_count"`
	PendingCount   int                   `json:"pending_count"`
	InheritedCount int                   `json:"inherited_count"`
	WorkbookStatus string                `json:"workbook_status"`
	OpenItems      []SLAItem             `json:"open_items"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// GetComplianceSummary 汇总款式下所有关联的状态与未完成事项
func (s *SummaryService) GetComplianceSummary(ctx context.Context, styleID string) (*ComplianceSummary, error) {
	style, err := s.repos.Style.FindByID(ctx, styleID)
	if err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	now := s.now()

	links, err := s.repos.Link.FindActiveByStyle(ctx, styleID)
	if err != nil {
		return nil, fmt.Errorf("find links: %w", err)
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ComponentID)
	}
	components, err := s.repos.Component.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find components: %w", err)
	}
	byID := make(map[string]*entity.Component, len(components))
	for i := range components {
		byID[components[i].ID] = &components[i]
	}

	summary := &ComplianceSummary{
		StyleID:     style.ID,
		StyleCode:   style.Code,
		StyleName:   style.Name,
		Stage:       style.Stage,
		NextStage:   entity.NextStage(style.Stage),
		Rush:        style.Rush,
		Components:  make([]ComponentCompliance, 0, len(links)),
		OpenItems:   []SLAItem{},
		GeneratedAt: now,
	}

	for i := range links {
		link := &links[i]
		row := ComponentCompliance{
			ComponentID: link.ComponentID,
			TUStatus:    link.TUStatus,
			Inherited:   link.IsInherited(),
			CopiedFrom:  link.BaseTestCopiedFrom,
			ExpiresAt:   link.BaseTestExpiresAt,
		}
		if c, ok := byID[link.ComponentID]; ok {
			row.Code = c.Code
			row.Name = c.Name
			row.Variant = c.Variant
			row.ComponentStatus = c.Status
			row.CompositionValid = ValidateFabric(c) == nil
		}

		passing := map[string]*bool{
			entity.TestLevelBase:    &row.BasePassing,
			entity.TestLevelBulk:    &row.BulkPassing,
			entity.TestLevelGarment: &row.GarmentPassing,
		}
		for level, dst := range passing {
			ok, err := s.isPassing(ctx, s.repos, link.ComponentID, styleID, level, link)
			if err != nil {
				return nil, err
			}
			*dst = ok
		}

		if link.TUStatus == entity.TUStatusApproved {
			summary.ApprovedCount++
		} else {
			summary.PendingCount++
		}
		if row.Inherited {
			summary.InheritedCount++
		}
		summary.Components = append(summary.Components, row)
	}

	wbApproved, err := isWorkbookApproved(ctx, s.repos, styleID)
	if err != nil {
		return nil, err
	}
	summary.WorkbookStatus = "none"
	if wb, err := s.repos.Workbook.FindLatestByStyle(ctx, styleID); err == nil {
		summary.WorkbookStatus = wb.Status
	} else if wbApproved {
		summary.WorkbookStatus = entity.WorkbookStatusApproved
	}

	items, err := s.openItems(ctx, style, now)
	if err != nil {
		return nil, err
	}
	summary.OpenItems = items
	return summary, nil
}

// openItems 未出结果的测试与未完成的验货，按截止时间排序
func (s *SummaryService) openItems(ctx context.Context, style *entity.Style, now time.Time) ([]SLAItem, error) {
	items := []SLAItem{}

	tests, err := s.repos.Test.FindByStyle(ctx, style.ID)
	if err != nil {
		return nil, fmt.Errorf("find tests: %w", err)
	}
	for _, t := range tests {
		if t.Status != entity.TestStatusSubmitted {
			continue
		}
		items = append(items, SLAItem{
			Kind:          "test",
			ID:            t.ID,
			Code:          t.Code,
			Label:         t.Level,
			DueDate:       t.DueDate,
			Status:        SLAStatusWithin(t.DueDate, now, style.Rush, s.cfg.AtRiskWindow),
			DaysRemaining: DaysRemaining(t.DueDate, now),
		})
	}

	inspections, err := s.repos.Inspection.FindByStyle(ctx, style.ID)
	if err != nil {
		return nil, fmt.Errorf("find inspections: %w", err)
	}
	for _, in := range inspections {
		if in.Status != entity.InspectionStatusScheduled {
			continue
		}
		items = append(items, SLAItem{
			Kind:          "inspection",
			ID:            in.ID,
			Code:          in.InspectionCode,
			Label:         in.Type,
			DueDate:       in.DueDate,
			Status:        SLAStatusWithin(in.DueDate, now, style.Rush, s.cfg.AtRiskWindow),
			DaysRemaining: DaysRemaining(in.DueDate, now),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate)
	})
	return items, nil
}

var complianceExportHeaders = []string{
	"Component", "Name", "Variant", "Component Status", "Composition Valid",
	"TU Status", "Inherited From", "Inheritance Expires", "Base", "Bulk", "Garment",
}

// ExportComplianceXLSX 导出合规汇总为xlsx，第二个sheet为未完成事项
func (s *SummaryService) ExportComplianceXLSX(ctx context.Context, styleID string) (*excelize.File, string, error) {
	summary, err := s.GetComplianceSummary(ctx, styleID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "Compliance"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range complianceExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for idx, c := range summary.Components {
		row := idx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), c.Code)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), c.Name)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), c.Variant)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), c.ComponentStatus)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), yesNo(c.CompositionValid))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), c.TUStatus)
		if c.CopiedFrom != nil {
			f.SetCellValue(sheet, fmt.Sprintf("G%d", row), *c.CopiedFrom)
		}
		if c.ExpiresAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("H%d", row), c.ExpiresAt.Format("2006-01-02"))
		}
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), passFail(c.BasePassing))
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), passFail(c.BulkPassing))
		f.SetCellValue(sheet, fmt.Sprintf("K%d", row), passFail(c.GarmentPassing))
	}

	summaryRow := len(summary.Components) + 2
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("%s (%s)", summary.StyleCode, summary.Stage))
	f.SetCellValue(sheet, fmt.Sprintf("F%d", summaryRow),
		fmt.Sprintf("approved %d / pending %d", summary.ApprovedCount, summary.PendingCount))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("K%d", summaryRow), boldStyle)

	colWidths := []float64{16, 24, 10, 16, 16, 12, 20, 18, 8, 8, 8}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	openSheet := "Open Items"
	if _, err := f.NewSheet(openSheet); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	for i, h := range []string{"Kind", "Code", "Label", "Due Date", "SLA", "Days Remaining"} {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(openSheet, cell, h)
		f.SetCellStyle(openSheet, cell, cell, headerStyle)
	}
	for idx, item := range summary.OpenItems {
		row := idx + 2
		f.SetCellValue(openSheet, fmt.Sprintf("A%d", row), item.Kind)
		f.SetCellValue(openSheet, fmt.Sprintf("B%d", row), item.Code)
		f.SetCellValue(openSheet, fmt.Sprintf("C%d", row), item.Label)
		f.SetCellValue(openSheet, fmt.Sprintf("D%d", row), item.DueDate.Format("2006-01-02 15:04"))
		f.SetCellValue(openSheet, fmt.Sprintf("E%d", row), string(item.Status))
		f.SetCellValue(openSheet, fmt.Sprintf("F%d", row), item.DaysRemaining)
	}

	filename := fmt.Sprintf("compliance_%s_%s.xlsx", summary.StyleCode, summary.GeneratedAt.Format("20060102"))
	return f, filename, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func passFail(b bool) string {
	if b {
		return "pass"
	}
	return "-"
}
