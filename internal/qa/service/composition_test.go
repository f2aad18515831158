package service

import (
	"testing"

	"github.com/alvarodenicolasizquierdo/sgs-new-cp-sub001/internal/qa/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fibres(pcts ...int) []entity.FibreComposition {
	out := make([]entity.FibreComposition, 0, len(pcts))
	for i, p := range pcts {
		out = append(out, entity.FibreComposition{FibreType: []string{"Cotton", "Polyester", "Elastane"}[i%3], Percentage: p})
	}
	return out
}

func TestValidateComposition(t *testing.T) {
	tests := []struct {
		name string
		in   []entity.FibreComposition
		kind CompositionErrorKind
		sum  int
	}{
		{name: "exact", in: fibres(60, 40)},
		{name: "single fibre", in: fibres(100)},
		{name: "incomplete", in: fibres(60, 35), kind: CompositionIncomplete, sum: 95},
		{name: "overflow", in: fibres(60, 45), kind: CompositionOverflow, sum: 105},
		{name: "empty", in: nil, kind: CompositionEmpty},
		{name: "negative", in: fibres(110, -10), kind: CompositionOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateComposition(tt.in)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			var compErr *CompositionError
			require.ErrorAs(t, err, &compErr)
			assert.Equal(t, tt.kind, compErr.Kind)
			assert.Equal(t, tt.sum, compErr.Sum)
			assert.Equal(t, "composition", compErr.ValidationField())
		})
	}
}

func TestValidateFabric_TrimPasses(t *testing.T) {
	trim := &entity.Component{Variant: entity.ComponentVariantTrim}
	assert.NoError(t, ValidateFabric(trim))

	fabric := &entity.Component{Variant: entity.ComponentVariantFabric, Composition: fibres(60, 35)}
	assert.Error(t, ValidateFabric(fabric))
}

func TestParseCompositionText(t *testing.T) {
	inputs, err := ParseCompositionText("60% Organic Cotton, 35% Recycled Polyester; 5% Elastane")
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	assert.Equal(t, "Organic Cotton", inputs[0].FibreType)
	assert.Equal(t, 60, inputs[0].Percentage)
	assert.True(t, inputs[0].Sustainable)
	assert.False(t, inputs[0].Recycled)

	assert.True(t, inputs[1].Recycled)
	assert.True(t, inputs[1].Sustainable)

	assert.Equal(t, "Elastane", inputs[2].FibreType)
	assert.False(t, inputs[2].Sustainable)

	empty, err := ParseCompositionText("  ")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = ParseCompositionText("sixty Cotton")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "composition", fieldErr.Field)

	_, err = ParseCompositionText("100%")
	assert.Error(t, err)
}
