package ingest

import (
	"fmt"
	"io"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

// ViralSweepColumns is the header of a ViralSweep raffle export.
var ViralSweepColumns = []string{
	"EMAIL", "IP", "LOCATION", "SHORT URL", "DATE", "INITIAL ENTRY", "DAILY ENTRIES",
	" REFERRAL ENTRIES", "BONUS ENTRIES", "TOTAL ENTRIES", "FIRST_NAME", "LAST_NAME",
	"ADDRESS", "CITY", "STATE", "ZIP", "STYLE", "SIZE", "RESIDENT",
	"I CONFIRM THAT I AM AT LEAST 18 YEARS OF AGE AND A RESIDENT OF THE UNITED STATES",
	"AGREE_TO_RULES", "ENTRY SOURCE", "TOTAL REFERRALS", "REFERRED BY",
	"REFERRER SOURCE URL", "ENTRY SOURCE URL", "TRACKING CAMPAIGN NAME",
}

// Columns an entrant export must carry, camelized.
var entrantColumns = []string{"email", "firstName", "lastName", "address", "city", "state", "zip", "size"}

// ReadEntrants parses a raffle export. Rows without an email and repeated
// emails are returned as RowErrors and left out of the entrants.
func ReadEntrants(r io.Reader) ([]models.Entrant, []RowError, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require(entrantColumns...); err != nil {
		return nil, nil, err
	}

	var (
		entrants []models.Entrant
		rowErrs  []RowError
		seen     = make(map[string]int)
	)
	for _, rw := range t.rows {
		e := models.Entrant{
			Email:        rw.get("email"),
			FirstName:    rw.get("firstName"),
			LastName:     rw.get("lastName"),
			Address:      rw.get("address"),
			City:         rw.get("city"),
			State:        rw.get("state"),
			Zip:          rw.get("zip"),
			Style:        rw.get("style"),
			Size:         rw.get("size"),
			IP:           rw.get("ip"),
			Location:     rw.get("location"),
			EntryDate:    rw.get("date"),
			TotalEntries: rw.get("totalEntries"),
			EntrySource:  rw.get("entrySource"),
			Row:          rw.line,
		}

		id := models.NormalizeIdentifier(e.Email)
		switch {
		case id == "":
			rowErrs = append(rowErrs, RowError{Line: rw.line, Reason: "missing email"})
			continue
		case seen[id] != 0:
			rowErrs = append(rowErrs, RowError{
				Line:       rw.line,
				Identifier: e.Identifier(),
				Reason:     fmt.Sprintf("duplicate entry, first seen on line %d", seen[id]),
			})
			continue
		}
		seen[id] = rw.line
		entrants = append(entrants, e)
	}

	return entrants, rowErrs, nil
}
