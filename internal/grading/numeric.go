package grading

import (
	"math"
	"strconv"
	"strings"
)

// numericMatch lets a fill-blank accept numbers within a tolerance. The
// first non-tolerance answer is the target; tolerance keys follow it.
//
//	Answers: ["3.14159", "tol=0.01"]   // absolute tolerance
//	Answers: ["100", "reltol=0.05"]    // 5% relative tolerance
func numericMatch(resp string, answers []string) bool {
	var target string
	var tolKeys []string
	for _, a := range answers {
		if isToleranceKey(a) {
			tolKeys = append(tolKeys, a)
		} else if target == "" {
			target = a
		}
	}
	if target == "" || len(tolKeys) == 0 {
		return false
	}
	rv, rOK := parseFloatLoose(resp)
	tv, tOK := parseFloatLoose(target)
	if !rOK || !tOK {
		return false
	}
	absTol, relTol := parseTolerances(tolKeys)
	diff := math.Abs(rv - tv)
	if absTol >= 0 && diff <= absTol {
		return true
	}
	return relTol >= 0 && diff <= relTol*math.Abs(tv)
}

func isToleranceKey(k string) bool {
	k = strings.TrimSpace(strings.ToLower(k))
	return strings.HasPrefix(k, "tol=") || strings.HasPrefix(k, "reltol=")
}

func parseFloatLoose(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, true
	}
	if sp := strings.Fields(s); len(sp) > 0 {
		if v, err := strconv.ParseFloat(sp[0], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

func parseTolerances(keys []string) (absTol float64, relTol float64) {
	absTol, relTol = -1, -1
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		if v, ok := strings.CutPrefix(k, "tol="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				absTol = f
			}
		}
		if v, ok := strings.CutPrefix(k, "reltol="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				relTol = f
			}
		}
	}
	return
}
