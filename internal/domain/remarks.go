package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RemarkKind discriminates the structured remark payload attached to a step
// completion. Each step category accepts a specific kind, so payloads are
// type-checked instead of parsed out of free text.
type RemarkKind string

const (
	RemarkNote     RemarkKind = "note"
	RemarkPayment  RemarkKind = "payment"
	RemarkLoan     RemarkKind = "loan"
	RemarkSubsidy  RemarkKind = "subsidy"
	RemarkNetMeter RemarkKind = "net_meter"
	RemarkOverride RemarkKind = "override"
)

// Remarks is a discriminated union. Kind selects which payload pointer is
// populated; Note is common to all kinds.
type Remarks struct {
	Kind RemarkKind `json:"kind"`
	Note string     `json:"note,omitempty"`

	Payment  *PaymentDetails  `json:"payment,omitempty"`
	Loan     *LoanDetails     `json:"loan,omitempty"`
	Subsidy  *SubsidyDetails  `json:"subsidy,omitempty"`
	NetMeter *NetMeterDetails `json:"net_meter,omitempty"`
	Override *OverrideDetails `json:"override,omitempty"`
}

type PaymentDetails struct {
	Mode        string  `json:"mode"` // cash, cheque, transfer
	Amount      float64 `json:"amount"`
	ReferenceNo string  `json:"reference_no,omitempty"`
}

type LoanDetails struct {
	Provider      string  `json:"provider"`
	ApplicationNo string  `json:"application_no,omitempty"`
	Amount        float64 `json:"amount"`
	Approved      bool    `json:"approved"`
}

type SubsidyDetails struct {
	Scheme        string  `json:"scheme"`
	ApplicationNo string  `json:"application_no,omitempty"`
	Amount        float64 `json:"amount"`
}

type NetMeterDetails struct {
	MeterNo      string `json:"meter_no"`
	SanctionedKW int    `json:"sanctioned_kw,omitempty"`
}

// OverrideDetails flags an administrative bypass on the live record so a
// completed-out-of-order instance is identifiable as designed behavior.
type OverrideDetails struct {
	Justification string           `json:"justification"`
	Action        TransitionAction `json:"action"`
}

// NoteRemarks builds a plain note remark.
func NoteRemarks(note string) *Remarks {
	return &Remarks{Kind: RemarkNote, Note: note}
}

// OverrideRemarks builds the remark stored on instances mutated through the
// override path.
func OverrideRemarks(action TransitionAction, justification string) *Remarks {
	return &Remarks{
		Kind:     RemarkOverride,
		Note:     justification,
		Override: &OverrideDetails{Justification: justification, Action: action},
	}
}

// Empty reports whether the remark carries no content at all.
func (r *Remarks) Empty() bool {
	if r == nil {
		return true
	}
	return strings.TrimSpace(r.Note) == "" &&
		r.Payment == nil && r.Loan == nil && r.Subsidy == nil &&
		r.NetMeter == nil && r.Override == nil
}

// Validate checks internal consistency: the payload pointer must match Kind
// and no foreign payload may be set.
func (r *Remarks) Validate() error {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case RemarkNote, "":
	case RemarkPayment:
		if r.Payment == nil {
			return fmt.Errorf("remarks kind %q without payment payload", r.Kind)
		}
	case RemarkLoan:
		if r.Loan == nil {
			return fmt.Errorf("remarks kind %q without loan payload", r.Kind)
		}
	case RemarkSubsidy:
		if r.Subsidy == nil {
			return fmt.Errorf("remarks kind %q without subsidy payload", r.Kind)
		}
	case RemarkNetMeter:
		if r.NetMeter == nil {
			return fmt.Errorf("remarks kind %q without net_meter payload", r.Kind)
		}
	case RemarkOverride:
		if r.Override == nil {
			return fmt.Errorf("remarks kind %q without override payload", r.Kind)
		}
	default:
		return fmt.Errorf("unknown remarks kind %q", r.Kind)
	}
	return nil
}

// KindForCategory returns the remark kind a step category expects on normal
// completion.
func KindForCategory(c StepCategory) RemarkKind {
	switch c {
	case CategoryPayment:
		return RemarkPayment
	case CategoryLoan:
		return RemarkLoan
	default:
		return RemarkNote
	}
}

// remarksEqual compares two remark payloads structurally via their canonical
// JSON encoding.
func remarksEqual(a, b *Remarks) bool {
	if a == nil && b == nil {
		return true
	}
	if (a == nil) != (b == nil) {
		return false
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}
