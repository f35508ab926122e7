package domain

import (
	"strings"
)

// PROType identifies the organisation that issued a royalty statement
type PROType string

const (
	PROTypeBMI   PROType = "BMI"
	PROTypeASCAP PROType = "ASCAP"
	PROTypeSESAC PROType = "SESAC"
	PROTypeMLC   PROType = "MLC"
	PROTypeOther PROType = "OTHER"
)

// ParsePROType maps free-form operator input onto a PROType.
// Unknown values map to PROTypeOther; callers decide whether that is fatal.
func ParsePROType(s string) PROType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BMI":
		return PROTypeBMI
	case "ASCAP":
		return PROTypeASCAP
	case "SESAC":
		return PROTypeSESAC
	case "MLC", "THE MLC":
		return PROTypeMLC
	default:
		return PROTypeOther
	}
}

// IsValid returns true for any declared PRO type, including OTHER
func (p PROType) IsValid() bool {
	switch p {
	case PROTypeBMI, PROTypeASCAP, PROTypeSESAC, PROTypeMLC, PROTypeOther:
		return true
	}
	return false
}
