package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EditRecord is the provenance of one image-edit turn: what the image looked like before,
// what was asked and what it looks like after. It only lives in process memory; the remote
// message schema has no column for it.
type EditRecord struct {
	OriginalDescription string
	EditInstruction     string
	EditedDescription   string
	TechnicalInfo       string
	Timestamp           time.Time
}

// Validate reports records that cannot be summarized
func (r *EditRecord) Validate() error {
	if r == nil {
		return goerr.New("edit record is nil")
	}
	if r.EditInstruction == "" {
		return goerr.New("edit instruction is missing")
	}
	if r.OriginalDescription == "" && r.EditedDescription == "" {
		return goerr.New("edit record has no description", goerr.V("instruction", r.EditInstruction))
	}
	if r.Timestamp.IsZero() {
		return goerr.New("edit record has no timestamp", goerr.V("instruction", r.EditInstruction))
	}
	return nil
}
