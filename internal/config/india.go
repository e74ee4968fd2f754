package config

import (
	"strings"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

// IndiaSources are switched on together by India mode.
var IndiaSources = []string{domain.SourceNaukri, domain.SourceShine, domain.SourceTimesJobs}

const IndiaLocation = "India"

// ApplyIndiaMode enables the regional sources and adds "India" to the
// locations exactly once. Repeated calls leave the settings unchanged.
// Turning India mode off does not undo either change.
func ApplyIndiaMode(s *Settings) {
	if s.Sources == nil {
		s.Sources = map[string]bool{}
	}
	for _, id := range IndiaSources {
		s.Sources[id] = true
	}
	for _, loc := range s.Locations {
		if strings.EqualFold(strings.TrimSpace(loc), IndiaLocation) {
			return
		}
	}
	s.Locations = append(s.Locations, IndiaLocation)
}
