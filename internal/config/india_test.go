package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linkmeAman/JHuntAutomator/internal/domain"
)

func TestApplyIndiaModeIdempotent(t *testing.T) {
	s := Default()
	s.IndiaMode = true

	for i := 0; i < 3; i++ {
		ApplyIndiaMode(&s)
	}

	for _, id := range []string{domain.SourceNaukri, domain.SourceShine, domain.SourceTimesJobs} {
		assert.True(t, s.Sources[id], id)
	}
	count := 0
	for _, loc := range s.Locations {
		if loc == IndiaLocation {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestIndiaModeToggledThroughValidation(t *testing.T) {
	s := Default()
	s.Locations = append(s.Locations, "india")

	for i := 0; i < 2; i++ {
		s.IndiaMode = true
		s, _ = NormalizeAndValidate(s)
		s.IndiaMode = false
		s, _ = NormalizeAndValidate(s)
	}
	s.IndiaMode = true
	s, _ = NormalizeAndValidate(s)

	assert.Equal(t, []string{"Remote", "United States", "india"}, s.Locations)
	assert.True(t, s.Sources[domain.SourceShine])
}
