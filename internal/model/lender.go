// Package model defines the entities that flow through the enrichment pipeline.
package model

import (
	"strings"
)

// LenderRecord is one row of the lender contact list. FirstName, LastName and
// Company identify the person; everything else is optional and may be filled
// in by enrichment.
type LenderRecord struct {
	ID              string `json:"id,omitempty"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Company         string `json:"company" validate:"required"`
	WorkEmail       string `json:"work_email,omitempty"`
	MobilePhone     string `json:"mobile_phone,omitempty"`
	PersonalEmail   string `json:"personal_email,omitempty"`
	Title           string `json:"title,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	Trailing14Units string `json:"trailing_14_units,omitempty"`
	Tags            string `json:"tags,omitempty"`

	// Filled by enrichment.
	Source     string `json:"source,omitempty"`
	Confidence int    `json:"confidence"`
}

// FullName returns "First Last".
func (r LenderRecord) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// NeedsEnrichment reports whether the work email or mobile phone is missing.
func (r LenderRecord) NeedsEnrichment() bool {
	return r.WorkEmail == "" || r.MobilePhone == ""
}

// AppendTag adds tag to the comma-joined tag list. Existing tags are kept.
func (r *LenderRecord) AppendTag(tag string) {
	if r.Tags == "" {
		r.Tags = tag
		return
	}
	r.Tags = r.Tags + "," + tag
}

// HasTag reports whether tag is present in the comma-joined tag list.
func (r LenderRecord) HasTag(tag string) bool {
	for _, t := range strings.Split(r.Tags, ",") {
		if strings.TrimSpace(t) == tag {
			return true
		}
	}
	return false
}
