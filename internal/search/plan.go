package search

import (
	"github.com/JgvJalandoni/geneva-clinic-core/internal/patient"
)

// accessPath identifies the primary index the plan scans. Ordered by
// selectivity: an exact reference hit beats everything, a full scan is
// the fallback.
type accessPath int

const (
	pathFullScan accessPath = iota
	pathVisitRange
	pathDOBRange
	pathNamePrefix
	pathReference
)

func (p accessPath) String() string {
	switch p {
	case pathReference:
		return "reference"
	case pathNamePrefix:
		return "name_prefix"
	case pathDOBRange:
		return "dob_range"
	case pathVisitRange:
		return "visit_range"
	default:
		return "full_scan"
	}
}

// queryPlan is the assembled WHERE clause plus the chosen primary path.
// Every predicate lands in conds; path records which indexed predicate
// leads, mostly for tests and debug logging.
type queryPlan struct {
	path    accessPath
	conds   []string
	args    []any
	orderBy string
}

// buildPlan turns a Spec into SQL predicates. today is the reference
// civil date for age bracket conversion.
func buildPlan(spec Spec, today string) queryPlan {
	plan := queryPlan{
		path:  pathFullScan,
		conds: []string{"deleted_at IS NULL"},
	}

	lead := func(p accessPath) {
		if p > plan.path {
			plan.path = p
		}
	}

	// Free text: an exact reference number when it parses as one,
	// otherwise a name substring over last and first name.
	if spec.Query != "" {
		if ref, ok := patient.ParseReferenceNumber(spec.Query); ok {
			plan.conds = append(plan.conds, "reference_number = ?")
			plan.args = append(plan.args, ref)
			lead(pathReference)
		} else {
			like := "%" + escapeLike(spec.Query) + "%"
			plan.conds = append(plan.conds, "(last_name LIKE ? ESCAPE '\\' OR first_name LIKE ? ESCAPE '\\')")
			plan.args = append(plan.args, like, like)
		}
	}

	if spec.NamePrefix != "" {
		plan.conds = append(plan.conds, "last_name LIKE ? ESCAPE '\\'")
		plan.args = append(plan.args, escapeLike(spec.NamePrefix)+"%")
		lead(pathNamePrefix)
	}

	if spec.AlphaFrom != "" {
		plan.conds = append(plan.conds, "upper(substr(last_name, 1, 1)) >= ?")
		plan.args = append(plan.args, spec.AlphaFrom)
	}
	if spec.AlphaTo != "" {
		plan.conds = append(plan.conds, "upper(substr(last_name, 1, 1)) <= ?")
		plan.args = append(plan.args, spec.AlphaTo)
	}

	if spec.AgeMin != nil || spec.AgeMax != nil {
		dobFrom, dobTo := dobRange(spec.AgeMin, spec.AgeMax, today)
		if dobFrom != "" {
			plan.conds = append(plan.conds, "date_of_birth >= ?")
			plan.args = append(plan.args, dobFrom)
		}
		if dobTo != "" {
			plan.conds = append(plan.conds, "date_of_birth <= ?")
			plan.args = append(plan.args, dobTo)
		}
		if dobFrom != "" || dobTo != "" {
			lead(pathDOBRange)
		}
	}

	if spec.Sex != "" {
		plan.conds = append(plan.conds, "sex = ?")
		plan.args = append(plan.args, string(spec.Sex))
	}

	if spec.VisitFrom != "" || spec.VisitTo != "" {
		sub := "SELECT 1 FROM visits v WHERE v.patient_id = patients.id"
		var subArgs []any
		if spec.VisitFrom != "" {
			sub += " AND v.visit_date >= ?"
			subArgs = append(subArgs, spec.VisitFrom)
		}
		if spec.VisitTo != "" {
			sub += " AND v.visit_date <= ?"
			subArgs = append(subArgs, spec.VisitTo)
		}
		plan.conds = append(plan.conds, "EXISTS ("+sub+")")
		plan.args = append(plan.args, subArgs...)
		lead(pathVisitRange)
	}

	if spec.RegisteredFrom != "" {
		plan.conds = append(plan.conds, "date(created_at) >= ?")
		plan.args = append(plan.args, spec.RegisteredFrom)
	}
	if spec.RegisteredTo != "" {
		plan.conds = append(plan.conds, "date(created_at) <= ?")
		plan.args = append(plan.args, spec.RegisteredTo)
	}

	plan.orderBy = orderClause(spec.Sort)
	return plan
}

// orderClause maps a sort key to a deterministic ORDER BY. Last name and
// first name break every tie so pagination is stable.
func orderClause(key SortKey) string {
	switch key {
	case SortAge:
		// Youngest first. Unknown birth dates go last.
		return "date_of_birth IS NULL, date_of_birth DESC, last_name, first_name"
	case SortRecentVisit:
		return "(SELECT MAX(v.visit_date) FROM visits v WHERE v.patient_id = patients.id) DESC, last_name, first_name"
	case SortRegistered:
		return "created_at DESC, last_name, first_name"
	default:
		return "last_name, first_name"
	}
}

// escapeLike neutralizes LIKE wildcards in user-supplied text.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
