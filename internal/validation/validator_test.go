package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketplace/adminpanel/internal/domain"
)

type party struct {
	Name string `json:"name" validate:"required"`
}

type sample struct {
	ID         string `json:"id" validate:"required"`
	Status     string `json:"status" validate:"oneof=new evidence"`
	Percentage int    `json:"percentage" validate:"gte=0,lte=100"`
	Currency   string `json:"currency" validate:"currency_code"`
	Business   party  `json:"business"`
}

func valid() sample {
	return sample{ID: "D1", Status: "new", Percentage: 50, Currency: "SAR", Business: party{Name: "Nakheel"}}
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(valid()))
}

func TestStructReportsFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sample)
		kind   error
		field  string
	}{
		{"missing id", func(s *sample) { s.ID = "" }, domain.ErrMissingField, "id"},
		{"bad status", func(s *sample) { s.Status = "open" }, domain.ErrInvalidField, "status"},
		{"percentage", func(s *sample) { s.Percentage = 101 }, domain.ErrInvalidPercentage, "percentage"},
		{"currency", func(s *sample) { s.Currency = "NGN" }, domain.ErrInvalidField, "currency"},
		{"nested", func(s *sample) { s.Business.Name = "" }, domain.ErrMissingField, "business.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := Struct(s)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var fe *domain.FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}
