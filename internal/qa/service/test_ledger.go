package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/repository"
	"github.com/google/uuid"
)

// ErrStorageNotConfigured 未配置对象存储
var ErrStorageNotConfigured = errors.New("object storage not configured")

// ObjectStore 报告附件存储
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// TestLedger 组件测试台账
type TestLedger struct {
	*engine
	storage ObjectStore
}

// RequestTestRequest 测试申请
type RequestTestRequest struct {
	ComponentID string     `json:"component_id" binding:"required"`
	StyleID     string     `json:"style_id" binding:"required"`
	Level       string     `json:"level" binding:"required"`
	DueDate     *time.Time `json:"due_date"`
	RequestedBy string     `json:"-"`
}

// ParameterInput 测试参数结果
type ParameterInput struct {
	Name          string `json:"name" binding:"required"`
	Specification string `json:"specification"`
	Result        string `json:"result"`
	Status        string `json:"status" binding:"required"` // pass/fail
}

// RecordResultRequest 录入测试结果
type RecordResultRequest struct {
	Parameters   []ParameterInput `json:"parameters"`
	LabReference string           `json:"lab_reference"`
	RecordedBy   string           `json:"-"`
}

// RequestTest 申请测试，同一三元组已有未出结果的申请时返回DuplicateError
func (s *TestLedger) RequestTest(ctx context.Context, req *RequestTestRequest) (*entity.ComponentTest, error) {
	if !entity.ValidTestLevels[req.Level] {
		return nil, &FieldError{Field: "level", Message: fmt.Sprintf("unknown test level %q", req.Level)}
	}

	unlock := s.locks.Lock(req.StyleID)
	var test *entity.ComponentTest
	err := s.inTx(ctx, func(repos *repository.Repositories) error {
		if _, err := repos.Style.FindByID(ctx, req.StyleID); err != nil {
			return wrapNotFound(err, "style", req.StyleID)
		}
		if _, err := repos.Component.FindByID(ctx, req.ComponentID); err != nil {
			return wrapNotFound(err, "component", req.ComponentID)
		}
		link, err := repos.Link.FindByPair(ctx, req.StyleID, req.ComponentID)
		if err != nil || !link.IsActive() {
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("find link: %w", err)
			}
			return &NotFoundError{Entity: "link", ID: req.StyleID + "/" + req.ComponentID}
		}

		open, err := repos.Test.FindOpen(ctx, req.ComponentID, req.StyleID, req.Level)
		if err == nil {
			return &DuplicateError{
				Entity:     "component_test",
				Key:        fmt.Sprintf("%s/%s/%s", req.ComponentID, req.StyleID, req.Level),
				ExistingID: open.ID,
			}
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("find open test: %w", err)
		}

		code, err := repos.Test.GenerateCode(ctx)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}

		now := s.now()
		due := now.AddDate(0, 0, s.cfg.TestTurnaroundDays)
		if req.DueDate != nil {
			due = req.DueDate.UTC()
		}
		test = &entity.ComponentTest{
			ID:          uuid.New().String()[:32],
			Code:        code,
			ComponentID: req.ComponentID,
			StyleID:     req.StyleID,
			Level:       req.Level,
			Status:      entity.TestStatusSubmitted,
			DueDate:     due,
			RequestedBy: req.RequestedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Test.Create(ctx, test); err != nil {
			return fmt.Errorf("create test: %w", err)
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditTest,
		EntityID:   test.ID,
		EntityCode: test.Code,
		StyleID:    test.StyleID,
		Action:     "request",
		ToStatus:   test.Status,
		Detail:     fmt.Sprintf("%s test requested", test.Level),
		OperatorID: req.RequestedBy,
	})
	return test, nil
}

// RecordResult 录入测试结果，结果一经录入不可修改。
// 基础测试结果会同步关联的合规状态，自有测试结果取代继承来的结果。
func (s *TestLedger) RecordResult(ctx context.Context, testID string, req *RecordResultRequest) (*entity.ComponentTest, error) {
	current, err := s.repos.Test.FindByID(ctx, testID)
	if err != nil {
		return nil, wrapNotFound(err, "component_test", testID)
	}
	if current.Status == entity.TestStatusTested {
		return nil, &AlreadyFinalizedError{Entity: "component_test", ID: testID}
	}
	if len(req.Parameters) == 0 {
		return nil, &FieldError{Field: "parameters", Message: "at least one parameter is required"}
	}

	params := make([]entity.TestParameter, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		if p.Name == "" {
			return nil, &FieldError{Field: "parameters.name", Message: "parameter name is required"}
		}
		if p.Status != entity.ParameterStatusPass && p.Status != entity.ParameterStatusFail {
			return nil, &FieldError{Field: "parameters.status", Message: fmt.Sprintf("parameter %q status must be pass or fail", p.Name)}
		}
		params = append(params, entity.TestParameter{
			Name:          p.Name,
			Specification: p.Specification,
			Result:        p.Result,
			Status:        p.Status,
		})
	}

	unlock := s.locks.Lock(current.StyleID)
	var test *entity.ComponentTest
	var link *entity.StyleComponentLink
	var fromStatus string
	err = s.inTx(ctx, func(repos *repository.Repositories) error {
		var err error
		test, err = repos.Test.FindByID(ctx, testID)
		if err != nil {
			return wrapNotFound(err, "component_test", testID)
		}
		test.RecordedBy = req.RecordedBy
		test.LabReference = req.LabReference

		ok, err := repos.Test.Finalize(ctx, test, params, s.now())
		if err != nil {
			return fmt.Errorf("finalize test: %w", err)
		}
		if !ok {
			return &AlreadyFinalizedError{Entity: "component_test", ID: testID}
		}

		if test.Level != entity.TestLevelBase {
			return nil
		}
		link, fromStatus, err = s.applyBaseResult(ctx, repos, test)
		return err
	})
	unlock()
	if err != nil {
		return nil, err
	}

	passing := test.IsPassing()
	s.metrics.TestFinalized(test.Level, passing)
	outcome := "fail"
	if passing {
		outcome = "pass"
	}
	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditTest,
		EntityID:   test.ID,
		EntityCode: test.Code,
		StyleID:    test.StyleID,
		Action:     "record_result",
		FromStatus: entity.TestStatusSubmitted,
		ToStatus:   entity.TestStatusTested,
		Detail:     "result: " + outcome,
		OperatorID: req.RecordedBy,
	})
	if link != nil {
		s.audit(ctx, entity.ActivityLog{
			EntityType: entity.AuditLink,
			EntityID:   link.ID,
			StyleID:    link.StyleID,
			Action:     "base_result",
			FromStatus: fromStatus,
			ToStatus:   link.TUStatus,
			Detail:     "base test " + test.Code + " " + outcome,
			OperatorID: req.RecordedBy,
		})
	}
	s.publish("test_recorded", map[string]interface{}{
		"test_id":      test.ID,
		"style_id":     test.StyleID,
		"component_id": test.ComponentID,
		"level":        test.Level,
		"passing":      passing,
	})
	return test, nil
}

// applyBaseResult 按基础测试结果更新关联：通过为approved，否则pending，并清除继承信息
func (s *TestLedger) applyBaseResult(ctx context.Context, repos *repository.Repositories, test *entity.ComponentTest) (*entity.StyleComponentLink, string, error) {
	status := entity.TUStatusPending
	if test.IsPassing() {
		status = entity.TUStatusApproved
	}

	for attempt := 0; attempt < 3; attempt++ {
		link, err := repos.Link.FindByPair(ctx, test.StyleID, test.ComponentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, "", nil
			}
			return nil, "", fmt.Errorf("find link: %w", err)
		}
		if !link.IsActive() {
			return nil, "", nil
		}

		from := link.TUStatus
		link.TUStatus = status
		link.BaseTestCopiedFrom = nil
		link.BaseTestCopiedAt = nil
		link.BaseTestExpiresAt = nil
		ok, err := repos.Link.Save(ctx, link)
		if err != nil {
			return nil, "", fmt.Errorf("update link: %w", err)
		}
		if ok {
			return link, from, nil
		}
	}
	return nil, "", fmt.Errorf("update link %s/%s: version conflict", test.StyleID, test.ComponentID)
}

// IsPassing 三元组是否有通过的测试证据；基础级别下继承的关联使用来源款式的证据，过期后不再通过
func (s *TestLedger) IsPassing(ctx context.Context, componentID, styleID, level string) (bool, error) {
	if !entity.ValidTestLevels[level] {
		return false, &FieldError{Field: "level", Message: fmt.Sprintf("unknown test level %q", level)}
	}
	var link *entity.StyleComponentLink
	if level == entity.TestLevelBase {
		l, err := s.repos.Link.FindByPair(ctx, styleID, componentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return false, fmt.Errorf("find link: %w", err)
		}
		link = l
	}
	return s.isPassing(ctx, s.repos, componentID, styleID, level, link)
}

func (e *engine) isPassing(ctx context.Context, repos *repository.Repositories, componentID, styleID, level string, link *entity.StyleComponentLink) (bool, error) {
	now := e.now()
	if level == entity.TestLevelBase && link != nil && link.InheritanceExpired(now) {
		return false, nil
	}

	own, err := latestTested(ctx, repos, componentID, styleID, level)
	if err != nil {
		return false, err
	}
	if own != nil {
		return own.IsPassing(), nil
	}

	if level != entity.TestLevelBase || link == nil || !link.IsInherited() {
		return false, nil
	}
	source, err := latestTested(ctx, repos, componentID, *link.BaseTestCopiedFrom, entity.TestLevelBase)
	if err != nil {
		return false, err
	}
	return source != nil && source.IsPassing(), nil
}

// AttachReport 上传实验室报告并追加为附件，已出结果的测试也可追加
func (s *TestLedger) AttachReport(ctx context.Context, testID, fileName, contentType string, size int64, reader io.Reader, uploadedBy string) (*entity.TestAttachment, error) {
	test, err := s.repos.Test.FindByID(ctx, testID)
	if err != nil {
		return nil, wrapNotFound(err, "component_test", testID)
	}
	if s.storage == nil {
		return nil, ErrStorageNotConfigured
	}

	key := fmt.Sprintf("lab-reports/%s/%s/%s%s", test.StyleID, test.Code, uuid.New().String()[:8], filepath.Ext(fileName))
	if err := s.storage.Put(ctx, key, reader, size, contentType); err != nil {
		return nil, fmt.Errorf("upload report: %w", err)
	}

	attachment := &entity.TestAttachment{
		TestID:      test.ID,
		Name:        fileName,
		ObjectKey:   key,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  uploadedBy,
		CreatedAt:   s.now(),
	}
	if err := s.repos.Test.AddAttachment(ctx, attachment); err != nil {
		return nil, fmt.Errorf("save attachment: %w", err)
	}

	s.audit(ctx, entity.ActivityLog{
		EntityType: entity.AuditTest,
		EntityID:   test.ID,
		EntityCode: test.Code,
		StyleID:    test.StyleID,
		Action:     "attach_report",
		Detail:     fileName,
		OperatorID: uploadedBy,
	})
	return attachment, nil
}

// OpenReport 读取附件内容
func (s *TestLedger) OpenReport(ctx context.Context, testID, attachmentID string) (io.ReadCloser, *entity.TestAttachment, error) {
	test, err := s.repos.Test.FindByID(ctx, testID)
	if err != nil {
		return nil, nil, wrapNotFound(err, "component_test", testID)
	}
	var attachment *entity.TestAttachment
	for i := range test.Attachments {
		if test.Attachments[i].ID == attachmentID {
			attachment = &test.Attachments[i]
			break
		}
	}
	if attachment == nil {
		return nil, nil, &NotFoundError{Entity: "attachment", ID: attachmentID}
	}
	if s.storage == nil {
		return nil, attachment, ErrStorageNotConfigured
	}
	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return nil, attachment, fmt.Errorf("open report: %w", err)
	}
	return reader, attachment, nil
}

// Get 获取测试详情
func (s *TestLedger) Get(ctx context.Context, testID string) (*entity.ComponentTest, error) {
	test, err := s.repos.Test.FindByID(ctx, testID)
	if err != nil {
		return nil, wrapNotFound(err, "component_test", testID)
	}
	return test, nil
}

// ListByComponent 组件的全部测试
func (s *TestLedger) ListByComponent(ctx context.Context, componentID string) ([]entity.ComponentTest, error) {
	if _, err := s.repos.Component.FindByID(ctx, componentID); err != nil {
		return nil, wrapNotFound(err, "component", componentID)
	}
	return s.repos.Test.FindByComponent(ctx, componentID)
}

// ListByStyle 款式的全部测试
func (s *TestLedger) ListByStyle(ctx context.Context, styleID string) ([]entity.ComponentTest, error) {
	if _, err := s.repos.Style.FindByID(ctx, styleID); err != nil {
		return nil, wrapNotFound(err, "style", styleID)
	}
	return s.repos.Test.FindByStyle(ctx, styleID)
}
