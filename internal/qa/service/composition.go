package service

import (
	"fmt"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
)

// CompositionErrorKind 成分校验失败类型
type CompositionErrorKind string

const (
	CompositionIncomplete CompositionErrorKind = "incomplete"
	CompositionOverflow   CompositionErrorKind = "overflow"
	CompositionEmpty      CompositionErrorKind = "empty"
	CompositionOutOfRange CompositionErrorKind = "out_of_range"
)

// CompositionError 面料成分校验错误
type CompositionError struct {
	Kind      CompositionErrorKind `json:"kind"`
	Sum       int                  `json:"sum"`
	FibreType string               `json:"fibre_type,omitempty"`
}

func (e *CompositionError) Error() string {
	switch e.Kind {
	case CompositionEmpty:
		return "composition has no fibre entries"
	case CompositionOutOfRange:
		return fmt.Sprintf("fibre %q percentage must be within 0-100", e.FibreType)
	case CompositionIncomplete:
		return fmt.Sprintf("composition sums to %d%%, expected 100%%", e.Sum)
	default:
		return fmt.Sprintf("composition sums to %d%%, exceeds 100%%", e.Sum)
	}
}

func (e *CompositionError) ValidationField() string { return "composition" }

// ValidateComposition 校验面料成分：至少一项、每项0-100、合计恰好100
func ValidateComposition(composition []entity.FibreComposition) error {
	if len(composition) == 0 {
		return &CompositionError{Kind: CompositionEmpty}
	}

	sum := 0
	for _, fc := range composition {
		if fc.Percentage < 0 || fc.Percentage > 100 {
			return &CompositionError{Kind: CompositionOutOfRange, FibreType: fc.FibreType}
		}
		sum += fc.Percentage
	}

	switch {
	case sum < 100:
		return &CompositionError{Kind: CompositionIncomplete, Sum: sum}
	case sum > 100:
		return &CompositionError{Kind: CompositionOverflow, Sum: sum}
	}
	return nil
}

// ValidateFabric 非面料直接通过
func ValidateFabric(c *entity.Component) error {
	if !c.IsFabric() {
		return nil
	}
	return ValidateComposition(c.Composition)
}
