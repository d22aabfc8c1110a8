package taxonomy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedDataLoads(t *testing.T) {
	require.NotEmpty(t, Segments())
	assert.Contains(t, Segments(), "Air Platforms")
	assert.Contains(t, Segments(), "Unknown")
}

func TestSegmentGeneralDependencies(t *testing.T) {
	assert.True(t, ValidSegment("Air Platforms"))
	assert.False(t, ValidSegment("Submarine Platforms"))

	assert.True(t, ValidGeneral("Air Platforms", "Fixed Wing"))
	assert.True(t, ValidGeneral("Air Platforms", "Not Applicable"))
	assert.False(t, ValidGeneral("Air Platforms", "Artillery"))
	assert.False(t, ValidGeneral("Nope", "Fixed Wing"))

	// Every segment admits the Not Applicable general; the Unknown segment
	// admits nothing else.
	for _, seg := range Segments() {
		assert.True(t, ValidGeneral(seg, "Not Applicable"), seg)
	}
	assert.Equal(t, []string{"Not Applicable"}, GeneralsFor("Unknown"))
}

func TestSpecificsAreScopedToTheirGeneral(t *testing.T) {
	assert.True(t, ValidSpecific("Air Platforms", "Fixed Wing", "Fighter"))
	assert.False(t, ValidSpecific("Air Platforms", "Rotary Wing", "Fighter"))
	assert.True(t, ValidSpecific("Weapon Systems", "Missile", "Surface-to-Air"))
	assert.True(t, ValidSpecific("Naval Platforms", "Sub-Surface", "Not Applicable"))
}

func TestRegionForCountry(t *testing.T) {
	assert.Equal(t, "North America", RegionForCountry("USA"))
	assert.Equal(t, "Europe", RegionForCountry("Poland"))
	assert.Equal(t, "South Asia", RegionForCountry("India"))
	assert.Equal(t, "Unknown", RegionForCountry("Atlantis"))
	assert.Equal(t, "Unknown", RegionForCountry("Unknown"))
}

func TestEnumerations(t *testing.T) {
	assert.True(t, ValidOperator("Ukraine (Assistance)"))
	assert.False(t, ValidOperator("Coast Guard"))

	assert.True(t, ValidProgramType("MRO/Support"))
	assert.False(t, ValidProgramType("Lease"))

	assert.True(t, ValidDomesticContent("License Production"))
	assert.False(t, ValidDomesticContent("Domestic"))

	assert.True(t, ValidPiloting("Uncrewed"))
	assert.False(t, ValidPiloting("Autonomous"))
}

func TestPromptTextIsJSONWithHierarchy(t *testing.T) {
	txt := PromptText()
	assert.True(t, strings.HasPrefix(strings.TrimSpace(txt), "{"))
	assert.Contains(t, txt, `"Air Platforms"`)
	assert.Contains(t, txt, `"Fighter"`)

	geo := GeographyPromptText()
	assert.Contains(t, geo, `"North America"`)
	assert.Contains(t, geo, `"USA"`)
}
