package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "الاسم", "الاسم"},
		{"surrounding space", "  الاسم \t", "الاسم"},
		{"inner runs", "رقم   الإقامة", "رقم الإقامة"},
		{"non-breaking space", "رقم\u00a0الإقامة", "رقم الإقامة"},
		{"zero width space", "رقم\u200b الإقامة", "رقم الإقامة"},
		{"rtl mark", "\u200fالرقم الموحد\u200e", "الرقم الموحد"},
		{"bom", "\ufeffالاسم", "الاسم"},
		{"empty", " \u200b ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeHeader(tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, got, NormalizeHeader(got), "normalization must be idempotent")
		})
	}
}

func TestRequiredColumnsAreNormalized(t *testing.T) {
	t.Parallel()

	for _, kind := range []session.Kind{session.KindEmployees, session.KindOrganizations} {
		for _, c := range RequiredColumns(kind) {
			assert.Equal(t, c, NormalizeHeader(c), "%s column %q", kind, c)
		}
	}
	assert.Len(t, RequiredColumns(session.KindEmployees), 18)
	assert.Len(t, RequiredColumns(session.KindOrganizations), 10)
}

func TestValidateColumns(t *testing.T) {
	t.Parallel()

	t.Run("exact template", func(t *testing.T) {
		t.Parallel()
		r := ValidateColumns(RequiredColumns(session.KindOrganizations), session.KindOrganizations)
		assert.True(t, r.Valid)
		assert.Empty(t, r.Missing)
		assert.Empty(t, r.Extra)
	})

	t.Run("noisy headers still match", func(t *testing.T) {
		t.Parallel()
		headers := RequiredColumns(session.KindEmployees)
		headers[3] = "\u200f رقم\u00a0الإقامة "
		headers = append(headers, "", "   ")
		r := ValidateColumns(headers, session.KindEmployees)
		assert.True(t, r.Valid, "%+v", r)
	})

	t.Run("missing unified number", func(t *testing.T) {
		t.Parallel()
		var headers []string
		for _, c := range RequiredColumns(session.KindOrganizations) {
			if c != ColUnifiedNumber {
				headers = append(headers, c)
			}
		}
		r := ValidateColumns(headers, session.KindOrganizations)
		assert.False(t, r.Valid)
		assert.Equal(t, []string{ColUnifiedNumber}, r.Missing)
		assert.Empty(t, r.Extra)
	})

	t.Run("legacy aliases are not extra", func(t *testing.T) {
		t.Parallel()
		headers := append(RequiredColumns(session.KindEmployees), "رقم الجوال", "حقول إضافية")
		r := ValidateColumns(headers, session.KindEmployees)
		assert.True(t, r.Valid)
	})

	t.Run("unknown header is extra once", func(t *testing.T) {
		t.Parallel()
		headers := append(RequiredColumns(session.KindOrganizations), "Notes", " Notes")
		r := ValidateColumns(headers, session.KindOrganizations)
		require.False(t, r.Valid)
		assert.Equal(t, []string{"Notes"}, r.Extra)
	})

	t.Run("employee sheet uploaded as organizations", func(t *testing.T) {
		t.Parallel()
		r := ValidateColumns(RequiredColumns(session.KindEmployees), session.KindOrganizations)
		assert.False(t, r.Valid)
		assert.Contains(t, r.Missing, ColOrganizationName)
		assert.Contains(t, r.Extra, ColResidenceNumber)
		assert.NotContains(t, r.Extra, ColUnifiedNumber)
	})
}
