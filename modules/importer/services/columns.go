package services

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

// Employee sheet columns.
const (
	ColEmployeeName          = "الاسم"
	ColProfession            = "المهنة"
	ColNationality           = "الجنسية"
	ColResidenceNumber       = "رقم الإقامة"
	ColPassportNumber        = "رقم جواز السفر"
	ColPhone                 = "رقم الهاتف"
	ColBankAccount           = "الحساب البنكي"
	ColSalary                = "الراتب"
	ColProject               = "المشروع"
	ColEmployeeOrganization  = "الشركة أو المؤسسة"
	ColUnifiedNumber         = "الرقم الموحد"
	ColBirthDate             = "تاريخ الميلاد"
	ColJoiningDate           = "تاريخ الالتحاق"
	ColResidenceExpiry       = "تاريخ انتهاء الإقامة"
	ColContractExpiry        = "تاريخ انتهاء العقد"
	ColAjeerContractExpiry   = "تاريخ انتهاء عقد أجير"
	ColHealthInsuranceExpiry = "تاريخ انتهاء التأمين الصحي"
	ColResidenceImageURL     = "رابط صورة الإقامة"
)

// Organization sheet columns. The unified number column is shared with employees.
const (
	ColOrganizationName             = "اسم المؤسسة"
	ColSocialInsuranceNumber        = "رقم اشتراك التأمينات الاجتماعية"
	ColQiwaSubscriptionNumber       = "رقم اشتراك قوى"
	ColCommercialRegistrationExpiry = "تاريخ انتهاء السجل التجاري"
	ColQiwaSubscriptionExpiry       = "تاريخ انتهاء اشتراك قوى"
	ColMuqeemSubscriptionExpiry     = "تاريخ انتهاء اشتراك مقيم"
	ColExemptions                   = "الاعفاءات"
	ColOrganizationType             = "نوع المؤسسة"
	ColNotes                        = "الملاحظات"
)

type kindSchema struct {
	required   []string
	aliases    []string
	naturalKey string
	name       string
}

var schemas = map[session.Kind]kindSchema{
	session.KindEmployees: {
		required: []string{
			ColEmployeeName, ColProfession, ColNationality, ColResidenceNumber, ColPassportNumber,
			ColPhone, ColBankAccount, ColSalary, ColProject, ColEmployeeOrganization, ColUnifiedNumber,
			ColBirthDate, ColJoiningDate, ColResidenceExpiry, ColContractExpiry, ColAjeerContractExpiry,
			ColHealthInsuranceExpiry, ColResidenceImageURL,
		},
		aliases: []string{
			"رقم الجوال", "رقم الجواز", "انتهاء الإقامة", "اسم المشروع", "المؤسسة",
			"انتهاء العقد", "حقول إضافية", "انتهاء اشتراك التأمين",
		},
		naturalKey: ColResidenceNumber,
		name:       ColEmployeeName,
	},
	session.KindOrganizations: {
		required: []string{
			ColOrganizationName, ColUnifiedNumber, ColSocialInsuranceNumber, ColQiwaSubscriptionNumber,
			ColCommercialRegistrationExpiry, ColQiwaSubscriptionExpiry, ColMuqeemSubscriptionExpiry,
			ColExemptions, ColOrganizationType, ColNotes,
		},
		aliases: []string{
			"الرقم التأميني", "تاريخ انتهاء اشتراك التأمين", "عدد الموظفين", "الحد الأقصى للموظفين",
			"حد الموظفين", "حقول إضافية", "تاريخ تجديد الوثائق الحكومية",
		},
		naturalKey: ColUnifiedNumber,
		name:       ColOrganizationName,
	},
}

// RequiredColumns returns the header every sheet of the kind must carry, in template order.
func RequiredColumns(kind session.Kind) []string {
	return append([]string(nil), schemas[kind].required...)
}

// NaturalKeyColumn names the column that identifies a stored record of the kind.
func NaturalKeyColumn(kind session.Kind) string {
	return schemas[kind].naturalKey
}

type ColumnReport struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Extra   []string `json:"extra"`
}

// NormalizeHeader folds compatibility forms (including non-breaking spaces),
// drops invisible format characters and collapses runs of whitespace.
func NormalizeHeader(s string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cf)))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

// ValidateColumns compares headers against the required set of the kind.
// Legacy aliases are never reported as extra.
func ValidateColumns(headers []string, kind session.Kind) ColumnReport {
	schema := schemas[kind]

	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		if n := NormalizeHeader(h); n != "" {
			present[n] = struct{}{}
		}
	}
	known := make(map[string]struct{}, len(schema.required)+len(schema.aliases))
	for _, c := range schema.required {
		known[c] = struct{}{}
	}
	for _, c := range schema.aliases {
		known[c] = struct{}{}
	}

	report := ColumnReport{Missing: []string{}, Extra: []string{}}
	for _, c := range schema.required {
		if _, ok := present[c]; !ok {
			report.Missing = append(report.Missing, c)
		}
	}
	seen := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		n := NormalizeHeader(h)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if _, ok := known[n]; !ok {
			report.Extra = append(report.Extra, n)
		}
	}
	report.Valid = len(report.Missing) == 0 && len(report.Extra) == 0
	return report
}
