package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

var phonePattern = regexp.MustCompile(`^[0-9+]{10,15}$`)

var employeeDateColumns = []string{
	ColBirthDate,
	ColJoiningDate,
	ColResidenceExpiry,
	ColContractExpiry,
	ColAjeerContractExpiry,
	ColHealthInsuranceExpiry,
}

var organizationDateColumns = []string{
	ColCommercialRegistrationExpiry,
	ColQiwaSubscriptionExpiry,
	ColMuqeemSubscriptionExpiry,
}

// Lookups are the store-side key sets row validation resolves against.
// Keys are in the canonical form returned by NaturalKey.
type Lookups struct {
	Existing      map[string]uuid.UUID
	Organizations map[string]uuid.UUID
}

// ValidateRow returns the findings for one normalized row.
func ValidateRow(row session.Row, kind session.Kind, lookups Lookups) []session.ValidationIssue {
	v := rowValidator{row: row}
	switch kind {
	case session.KindEmployees:
		v.employee(lookups)
	case session.KindOrganizations:
		v.organization()
	}
	return v.issues
}

type rowValidator struct {
	row    session.Row
	issues []session.ValidationIssue
}

func (v *rowValidator) add(field string, sev session.Severity, code session.IssueCode, format string, args ...any) {
	v.issues = append(v.issues, session.ValidationIssue{
		Row:      v.row.Number,
		Field:    field,
		Message:  fmt.Sprintf(format, args...),
		Severity: sev,
		Code:     code,
	})
}

func (v *rowValidator) required(field string) bool {
	if v.row.Get(field) == "" {
		v.add(field, session.SeverityError, session.CodeRequired, "%s is required", field)
		return false
	}
	return true
}

func (v *rowValidator) employee(lookups Lookups) {
	v.required(ColEmployeeName)
	v.required(ColResidenceNumber)

	if v.required(ColUnifiedNumber) {
		raw := v.row.Get(ColUnifiedNumber)
		key, ok := CanonicalNumber(raw)
		switch {
		case !ok:
			v.add(ColUnifiedNumber, session.SeverityError, session.CodeFormat, "unified number %q must be numeric", raw)
		case lookups.Organizations[key] == uuid.Nil:
			v.add(ColUnifiedNumber, session.SeverityError, session.CodeReference, "no organization with unified number %s", key)
		}
	}

	if phone := stripSpaces(v.row.Get(ColPhone)); phone != "" && !phonePattern.MatchString(phone) {
		v.add(ColPhone, session.SeverityWarning, session.CodeFormat, "phone %q should be 10-15 digits", phone)
	}

	for _, col := range employeeDateColumns {
		if raw := v.row.Get(col); raw != "" {
			if _, err := ParseDate(raw); err != nil {
				v.add(col, session.SeverityError, session.CodeDate, "%s: unrecognized date %q", col, raw)
			}
		}
	}

	if raw := v.row.Get(ColSalary); raw != "" {
		if _, ok := parseSalary(raw); !ok {
			v.add(ColSalary, session.SeverityWarning, session.CodeFormat, "salary %q is not a number and will be left empty", raw)
		}
	}
}

func (v *rowValidator) organization() {
	v.required(ColOrganizationName)
	if v.required(ColUnifiedNumber) {
		raw := v.row.Get(ColUnifiedNumber)
		if _, ok := CanonicalNumber(raw); !ok {
			v.add(ColUnifiedNumber, session.SeverityError, session.CodeFormat, "unified number %q must be numeric", raw)
		}
	}
	for _, col := range organizationDateColumns {
		if raw := v.row.Get(col); raw != "" {
			if _, err := ParseDate(raw); err != nil {
				v.add(col, session.SeverityWarning, session.CodeDate, "%s: unrecognized date %q will be left empty", col, raw)
			}
		}
	}
}

// NaturalKey returns the canonical natural key of row, or "" when it has none.
func NaturalKey(kind session.Kind, row session.Row) string {
	switch kind {
	case session.KindEmployees:
		return strings.TrimSpace(row.Get(ColResidenceNumber))
	case session.KindOrganizations:
		key, _ := CanonicalNumber(row.Get(ColUnifiedNumber))
		return key
	default:
		return ""
	}
}

// CanonicalNumber accepts a non-negative whole number, including the "555.0"
// and "7.001234567E+09" renderings of numeric cells.
func CanonicalNumber(s string) (string, bool) {
	s = stripSpaces(s)
	if s == "" {
		return "", false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return "", false
	}
	return strconv.FormatInt(int64(f), 10), true
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func parseSalary(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.ReplaceAll(stripSpaces(s), ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
