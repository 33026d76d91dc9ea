package services

import (
	"regexp"
	"strconv"
	"strings"
)

// EnergyExtractor recognizes energy-related expenses and extracts their
// electrical characteristics. The heuristic implementation parses free-text
// product names; a future structured-attribute model (explicit wattage and
// capacity fields) can replace it without touching the aggregation callers.
type EnergyExtractor interface {
	// ProductionWatts returns the solar production of a single unit, and
	// whether the expense was recognized as a production item.
	ProductionWatts(name, category string) (int64, bool)

	// StorageAmpHours returns the battery capacity of a single unit, and
	// whether the expense was recognized as a storage item.
	StorageAmpHours(name, category string) (int64, bool)
}

var (
	wattPattern    = regexp.MustCompile(`(?i)(\d+)\s*w\b`)
	ampHourPattern = regexp.MustCompile(`(?i)(\d+)\s*ah\b`)
)

// HeuristicExtractor matches panel-like and battery-like terms in the
// expense name or category and pulls the first integer preceding a "W"
// (watts) or "Ah" (amp-hours) token out of the name.
type HeuristicExtractor struct{}

var productionTerms = []string{"panneau", "électrique", "electrique"}

func (HeuristicExtractor) ProductionWatts(name, category string) (int64, bool) {
	if !containsAny(name, category, productionTerms) {
		return 0, false
	}
	return firstNumberBefore(wattPattern, name)
}

var storageTerms = []string{"batterie"}

func (HeuristicExtractor) StorageAmpHours(name, category string) (int64, bool) {
	if !containsAny(name, category, storageTerms) {
		return 0, false
	}
	return firstNumberBefore(ampHourPattern, name)
}

func containsAny(name, category string, terms []string) bool {
	lowerName := strings.ToLower(name)
	lowerCat := strings.ToLower(category)
	for _, term := range terms {
		if strings.Contains(lowerName, term) || strings.Contains(lowerCat, term) {
			return true
		}
	}
	return false
}

func firstNumberBefore(pattern *regexp.Regexp, name string) (int64, bool) {
	match := pattern.FindStringSubmatch(name)
	if match == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
