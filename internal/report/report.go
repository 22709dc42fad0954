// Package report holds the static catalogue of extraction queries, one per
// report type, and the rules for binding a job's criteria into them.
package report

import (
	"github.com/ahmethakanbesel/mining-reports/internal/apperror"
)

// Type identifies a report definition.
type Type string

const (
	MaterialLoading      Type = "MaterialLoading"
	ShiftProduction      Type = "ShiftProduction"
	EquipmentUtilization Type = "EquipmentUtilization"
	HaulCycle            Type = "HaulCycle"
	FuelConsumption      Type = "FuelConsumption"
	EquipmentDowntime    Type = "EquipmentDowntime"
)

// Kind is the expected type of a criteria value.
type Kind string

const (
	KindDate   Kind = "date"
	KindString Kind = "string"
	KindInt    Kind = "int"
)

// Param describes one criteria field accepted by a report. An optional
// param with a nil Default binds SQL NULL, which templates treat as
// "match all".
type Param struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// ExtractionSpec is what the worker needs to run one report type.
type ExtractionSpec struct {
	Type    Type     `json:"type"`
	Title   string   `json:"title"`
	Query   string   `json:"-"`
	Params  []Param  `json:"params"`
	Columns []string `json:"columns"`
}

// Criteria is the parameter bag captured when a job is submitted.
type Criteria map[string]any

// Shared criteria names.
const (
	ParamFromDate = "fromDate"
	ParamToDate   = "toDate"

	// derivedToDateExclusive is computed from toDate so templates can use a
	// half-open range on timestamp columns.
	derivedToDateExclusive = "toDateExclusive"
)

func unknownType(t Type) error {
	return apperror.New(apperror.UnknownReportType, "unknown report type: "+string(t))
}
