package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchEmptyMemoryReturnsNothing(t *testing.T) {
	m := New(0.1, nil)
	assert.Empty(t, m.Search("submarine procurement", 3))
	assert.Zero(t, m.Len())
}

func TestSearchRanksBySimilarity(t *testing.T) {
	m := New(0.1, nil)
	m.Import(context.Background(), []Example{
		{Description: "Lockheed Martin awarded contract for F-35 fighter aircraft procurement"},
		{Description: "Naval Group to build diesel submarine fleet for Australia"},
		{Description: "Road resurfacing works awarded municipal contractor"},
	})

	matches := m.Search("procurement of F-35 fighter aircraft", 3)
	require.NotEmpty(t, matches)
	assert.Contains(t, matches[0].Example.Description, "F-35")
	for i := 1; i < len(matches); i++ {
		assert.LessOrEqual(t, matches[i].Score, matches[i-1].Score)
	}
	for _, mt := range matches {
		assert.GreaterOrEqual(t, mt.Score, 0.1)
	}
}

func TestSearchHonorsK(t *testing.T) {
	m := New(0.0, nil)
	m.Import(context.Background(), []Example{
		{Description: "radar system for air defense"},
		{Description: "radar upgrade for air surveillance"},
		{Description: "radar maintenance and air support"},
	})

	assert.Len(t, m.Search("air radar", 2), 2)
	assert.Empty(t, m.Search("air radar", 0))
}

func TestSearchDropsIrrelevantMatches(t *testing.T) {
	m := New(0.1, nil)
	m.Import(context.Background(), []Example{
		{Description: "helicopter engine overhaul services"},
	})

	assert.Empty(t, m.Search("satellite ground terminal", 3))
}

// journalRecorder captures Add calls so tests can assert on journaling.
type journalRecorder struct {
	added []Example
}

func (j *journalRecorder) LoadAll(context.Context) ([]Example, error) { return nil, nil }
func (j *journalRecorder) Add(_ context.Context, ex Example) error {
	j.added = append(j.added, ex)
	return nil
}

func TestImportJournalsEveryExample(t *testing.T) {
	journal := &journalRecorder{}
	m := New(0.1, journal)
	m.Import(context.Background(), []Example{
		{Description: "Fighter jet procurement for air force"},
		{Description: "Frigate construction program"},
	})

	assert.Equal(t, 2, m.Len())
	require.Len(t, journal.added, 2)
	for _, ex := range journal.added {
		assert.NotEmpty(t, ex.ID)
	}

	matches := m.Search("frigate construction", 1)
	require.Len(t, matches, 1)
	assert.Equal(t, "Frigate construction program", matches[0].Example.Description)
}

func TestAppendIsSearchableImmediately(t *testing.T) {
	m := New(0.1, nil)
	m.Append(context.Background(), Example{
		Description: "Rheinmetall ammunition production contract",
		Fields:      map[string]string{"Market Segment": "Weapon Systems"},
	})

	matches := m.Search("ammunition production", 1)
	require.Len(t, matches, 1)
	assert.Equal(t, "Weapon Systems", matches[0].Example.Fields["Market Segment"])
	assert.NotEmpty(t, matches[0].Example.ID)
}

func TestReadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.csv")
	data := "Market Segment,Description of Contract,Supplier Name\n" +
		"Air Platforms,Fighter jet procurement for air force,Lockheed Martin\n" +
		"Naval Platforms,Frigate construction program,Fincantieri\n" +
		",,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	examples, err := ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "Fighter jet procurement for air force", examples[0].Description)
	assert.Equal(t, "Lockheed Martin", examples[0].Fields["Supplier Name"])
	assert.Equal(t, "Air Platforms", examples[0].Fields["Market Segment"])
}

func TestReadCSVRequiresDescriptionColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("A,B\n1,2\n"), 0o644))

	_, err := ReadCSV(path)
	assert.Error(t, err)
}
