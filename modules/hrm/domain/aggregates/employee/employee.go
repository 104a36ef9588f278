package employee

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Employee is keyed by its residence number. Nil optional fields are left
// untouched by Repository.Update.
type Employee struct {
	ID              uuid.UUID
	Name            string
	ResidenceNumber string
	OrganizationID  *uuid.UUID
	ProjectID       *uuid.UUID

	Profession        *string
	Nationality       *string
	PassportNumber    *string
	Phone             *string
	BankAccount       *string
	ResidenceImageURL *string
	Salary            *decimal.Decimal

	BirthDate             *time.Time
	JoiningDate           *time.Time
	ResidenceExpiry       *time.Time
	ContractExpiry        *time.Time
	AjeerContractExpiry   *time.Time
	HealthInsuranceExpiry *time.Time
}
