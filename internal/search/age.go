package search

import "time"

const dateLayout = "2006-01-02"

// Age returns completed years between dob and on, both YYYY-MM-DD civil
// dates. Pure calendar arithmetic: the result is identical whatever the
// timezone or time of day of the evaluating machine. Returns -1 when
// either date is malformed or dob is after on.
func Age(dob, on string) int {
	d, err := time.Parse(dateLayout, dob)
	if err != nil {
		return -1
	}
	o, err := time.Parse(dateLayout, on)
	if err != nil {
		return -1
	}
	if d.After(o) {
		return -1
	}

	years := o.Year() - d.Year()
	if o.Month() < d.Month() || (o.Month() == d.Month() && o.Day() < d.Day()) {
		years--
	}
	return years
}

// dobRange converts an inclusive age bracket into an inclusive
// date-of-birth range relative to the reference date. Either bound may
// be nil for an open end.
//
// A person is at least minAge on day X iff born on or before X minus
// minAge years; at most maxAge iff born after X minus maxAge+1 years.
func dobRange(ageMin, ageMax *int, on string) (dobFrom, dobTo string) {
	ref, err := time.Parse(dateLayout, on)
	if err != nil {
		return "", ""
	}

	if ageMax != nil {
		dobFrom = ref.AddDate(-(*ageMax + 1), 0, 0).AddDate(0, 0, 1).Format(dateLayout)
	}
	if ageMin != nil {
		dobTo = ref.AddDate(-*ageMin, 0, 0).Format(dateLayout)
	}
	return dobFrom, dobTo
}
