// Package evaluator is the compliance rules engine. Evaluate is a pure
// function of its inputs: no clock, no I/O, no errors. Incomplete or
// malformed data is expressed as unknown checks, never as a failure of the
// evaluation itself.
package evaluator

import (
	"strconv"
	"strings"

	"coverly/internal/domain"
)

// Evaluate produces one CheckResult per requirement, in policy order.
func Evaluate(fields []domain.ExtractedField, policy domain.RequirementPolicy) []domain.CheckResult {
	byName := make(map[string]domain.ExtractedField, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	checks := make([]domain.CheckResult, 0, len(policy.Requirements))
	for _, req := range policy.Requirements {
		field, ok := byName[req.FieldName]
		if !ok {
			field = domain.ExtractedField{Name: req.FieldName, Status: domain.FieldAbsent}
		}
		checks = append(checks, domain.CheckResult{
			ID:             req.ID,
			Label:          req.Label,
			Status:         check(req, field),
			RequirementID:  req.ID,
			EvidenceFields: []string{req.FieldName},
		})
	}
	return checks
}

func check(req domain.Requirement, field domain.ExtractedField) domain.CheckStatus {
	switch req.Comparison {
	case domain.PresenceOnly:
		switch field.Status {
		case domain.FieldPresent:
			return domain.CheckPass
		case domain.FieldAbsent:
			if req.Mandatory {
				return domain.CheckFail
			}
			return domain.CheckUnknown
		default:
			return domain.CheckUnknown
		}

	case domain.ExactMatch:
		switch field.Status {
		case domain.FieldPresent:
			if normalize(field.Value) == normalize(req.Threshold) {
				return domain.CheckPass
			}
			return domain.CheckFail
		case domain.FieldAbsent:
			if req.Mandatory {
				return domain.CheckFail
			}
			return domain.CheckUnknown
		default:
			return domain.CheckUnknown
		}

	case domain.MinCoverage:
		switch field.Status {
		case domain.FieldPresent:
			have, okHave := ParseAmount(field.Value)
			want, okWant := ParseAmount(req.Threshold)
			if !okHave || !okWant {
				// Never infer a passing limit from an unreadable value.
				return domain.CheckUnknown
			}
			if have >= want {
				return domain.CheckPass
			}
			return domain.CheckFail
		case domain.FieldAbsent:
			if req.Mandatory {
				return domain.CheckFail
			}
			return domain.CheckUnknown
		default:
			return domain.CheckUnknown
		}
	}
	return domain.CheckUnknown
}

// Score aggregates checks into a scorecard. Unknown checks are excluded
// from the denominator; a card with no pass or fail reports insufficient
// data instead of a number so missing data never reads as a low score.
func Score(checks []domain.CheckResult) domain.Scorecard {
	var passed, failed int
	for _, c := range checks {
		switch c.Status {
		case domain.CheckPass:
			passed++
		case domain.CheckFail:
			failed++
		}
	}
	card := domain.Scorecard{Checks: checks}
	if passed+failed == 0 {
		card.InsufficientData = true
		return card
	}
	card.Score = passed * 100 / (passed + failed)
	return card
}

// ParseAmount reads a money amount as written on certificates:
// "$1,000,000", "1,000,000.00", "2000000". Returns false for anything it
// cannot read as a non-negative number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
