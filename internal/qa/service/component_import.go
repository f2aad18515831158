package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// maxImportSize CSV导入上限
const maxImportSize = 10 << 20

// ImportResult 批量导入结果
type ImportResult struct {
	Created []string      `json:"created"`
	Failed  []ImportError `json:"failed"`
}

// ImportError 导入失败的行，Row从1开始（含表头）
type ImportError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// 导入模板列：Variant | Name | Mill | Origin Country | Reference Code | Colour | Composition | Trim Type | Size | Material
const (
	colVariant = iota
	colName
	colMill
	colOrigin
	colReference
	colColour
	colComposition
	colTrimType
	colSize
	colMaterial
)

// ImportXLSX 从Excel第一个sheet批量创建组件
func (s *ComponentService) ImportXLSX(ctx context.Context, userID string, f *excelize.File) (*ImportResult, error) {
	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}
	return s.importRows(ctx, userID, rows)
}

// ImportCSV 与Excel模板列相同的CSV导入，面料厂导出的GBK编码文件自动转为UTF-8
func (s *ComponentService) ImportCSV(ctx context.Context, userID string, reader io.Reader) (*ImportResult, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(data) > maxImportSize {
		return nil, &FieldError{Field: "file", Message: "csv exceeds 10MB"}
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var src io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		// GBK → UTF-8
		src = transform.NewReader(src, simplifiedchinese.GBK.NewDecoder())
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &FieldError{Field: "file", Message: "invalid csv: " + err.Error()}
	}
	return s.importRows(ctx, userID, rows)
}

// importRows 逐行创建，失败行不影响其他行
func (s *ComponentService) importRows(ctx context.Context, userID string, rows [][]string) (*ImportResult, error) {
	result := &ImportResult{Created: []string{}, Failed: []ImportError{}}
	if len(rows) < 2 {
		return result, nil
	}

	for i, row := range rows[1:] { // 跳过表头
		rowNum := i + 2
		cell := func(idx int) string {
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if cell(colVariant) == "" && cell(colName) == "" {
			continue
		}

		composition, err := ParseCompositionText(cell(colComposition))
		if err != nil {
			result.Failed = append(result.Failed, ImportError{Row: rowNum, Message: err.Error()})
			continue
		}
		req := &CreateComponentRequest{
			Variant:       strings.ToLower(cell(colVariant)),
			Name:          cell(colName),
			Mill:          cell(colMill),
			OriginCountry: cell(colOrigin),
			ReferenceCode: cell(colReference),
			Colour:        cell(colColour),
			Composition:   composition,
			TrimType:      cell(colTrimType),
			Size:          cell(colSize),
			Material:      cell(colMaterial),
		}
		component, err := s.Create(ctx, userID, req)
		if err != nil {
			result.Failed = append(result.Failed, ImportError{Row: rowNum, Message: err.Error()})
			continue
		}
		result.Created = append(result.Created, component.ID)
	}
	return result, nil
}

// ParseCompositionText 解析 "60% Cotton, 40% Polyester" 形式的成分文本，分隔符可为逗号或分号
func ParseCompositionText(text string) ([]FibreInput, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' })
	inputs := make([]FibreInput, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) < 2 {
			return nil, &FieldError{Field: "composition", Message: fmt.Sprintf("cannot parse %q", part)}
		}
		pct, err := strconv.Atoi(strings.TrimSuffix(fields[0], "%"))
		if err != nil {
			return nil, &FieldError{Field: "composition", Message: fmt.Sprintf("invalid percentage in %q", part)}
		}
		fibre := strings.Join(fields[1:], " ")
		in := FibreInput{FibreType: fibre, Percentage: pct}
		lower := strings.ToLower(fibre)
		if strings.Contains(lower, "recycled") {
			in.Recycled = true
			in.Sustainable = true
		}
		if strings.Contains(lower, "organic") {
			in.Sustainable = true
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
