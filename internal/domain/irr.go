package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IrrDateLayout is the serialized form of Irr dates
const IrrDateLayout = "2006-01-02"

// PeriodsPerYear is the number of compounding periods used to annualize a periodic rate
const PeriodsPerYear = 12

// irrPrecision is the number of decimal places kept on computed rates
const irrPrecision = 4

// Irr represents one computed periodic (monthly) internal rate of return for an entity
// Value is a fraction: 0.1 means 10% per period
type Irr struct {
	Date       *time.Time
	Value      decimal.Decimal
	EntityName EntityName
}

// IrrRecord is the flat, serializable projection of an Irr
type IrrRecord struct {
	Date       string  `json:"date" csv:"date"`
	IrrMonthly float64 `json:"irr_monthly" csv:"irr_monthly"`
	IrrAnnual  float64 `json:"irr_annual" csv:"irr_annual"`
	EntityName string  `json:"entity_name" csv:"entity_name"`
}

// NewIrr creates an Irr
func NewIrr(date *time.Time, value decimal.Decimal, entityName EntityName) Irr {
	return Irr{
		Date:       date,
		Value:      value,
		EntityName: entityName,
	}
}

// ValueAnnual projects the periodic rate over a year of equal compounding periods
// Logic: round((1 + Value)^12 - 1, 4)
func (i Irr) ValueAnnual() decimal.Decimal {
	one := decimal.NewFromInt(1)
	growth := one.Add(i.Value)
	compounded := one
	for p := 0; p < PeriodsPerYear; p++ {
		compounded = compounded.Mul(growth)
	}
	return compounded.Sub(one).Round(irrPrecision)
}

// DateString returns the date as YYYY-MM-DD, or an empty string when undated
func (i Irr) DateString() string {
	if i.Date == nil {
		return ""
	}
	return i.Date.Format(IrrDateLayout)
}

// ToRecord converts the Irr to its serializable record
func (i Irr) ToRecord() IrrRecord {
	return IrrRecord{
		Date:       i.DateString(),
		IrrMonthly: i.Value.InexactFloat64(),
		IrrAnnual:  i.ValueAnnual().InexactFloat64(),
		EntityName: string(i.EntityName),
	}
}
