package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"defrec/internal/config"
	"defrec/internal/record"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient routes each prompt to a canned response based on which stage
// template produced it.
type fakeClient struct {
	mu        sync.Mutex
	prompts   []string
	taxonomy  map[string]any
	geography map[string]any
	domestic  map[string]any
	financial map[string]any
	failStage string
}

func (f *fakeClient) CompleteJSON(_ context.Context, systemMsg, userPrompt string) (map[string]any, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, systemMsg+"\n"+userPrompt)
	f.mu.Unlock()

	switch {
	case strings.Contains(systemMsg, "REFERENCE TAXONOMY"):
		if f.failStage == "taxonomy" {
			return nil, errors.New("boom")
		}
		return f.taxonomy, nil
	case strings.Contains(userPrompt, "geography analyst"):
		if f.failStage == "geography" {
			return nil, errors.New("boom")
		}
		return f.geography, nil
	case strings.Contains(userPrompt, `Classify the "Domestic Content"`):
		if f.failStage == "domestic" {
			return nil, errors.New("boom")
		}
		return f.domestic, nil
	case strings.Contains(userPrompt, "financial and program analyst"):
		if f.failStage == "financial" {
			return nil, errors.New("boom")
		}
		return f.financial, nil
	}
	return nil, errors.New("unrecognized prompt")
}

func (f *fakeClient) promptCount(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

func fullFake() *fakeClient {
	return &fakeClient{
		taxonomy: map[string]any{
			"Market Segment":         "Air Platforms",
			"System Type (General)":  "Fixed Wing",
			"System Type (Specific)": "Fighter",
			"System Name (General)":  "F-35",
			"System Name (Specific)": "F-35A",
			"System Piloting":        "Crewed",
		},
		geography: map[string]any{
			"Customer Region":   "Europe",
			"Customer Country":  "Poland",
			"Customer Operator": "Air Force",
			"Supplier Region":   "North America",
			"Supplier Country":  "USA",
		},
		domestic: map[string]any{"Domestic Content": "Imported"},
		financial: map[string]any{
			"Supplier Name":          "Lockheed Martin Aeronautics Co.",
			"Program Type":           "Procurement",
			"Quantity":               float64(32),
			"Value Certainty":        "Confirmed",
			"Value (Million)":        "4600.000",
			"Currency":               "USD",
			"Description Date Found": "",
		},
	}
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Memory.DatabasePath = "" // RAM only
	cfg.Pipeline.Progress = false
	return cfg
}

func newPipeline(t *testing.T, fake *fakeClient) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), testConfig(), fake)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestProcessEndToEnd(t *testing.T) {
	p := newPipeline(t, fullFake())

	rec := p.Process(context.Background(), Row{
		Description:  "Poland buys 32 F-35A fighter jets from Lockheed Martin Aeronautics Co.",
		ContractDate: "05/02/2025",
	})

	assert.Equal(t, "Air Platforms", rec.Fields[record.FieldMarketSegment])
	assert.Equal(t, "Lockheed Martin", rec.Fields[record.FieldSupplierName])
	assert.Equal(t, "32", rec.Fields[record.FieldQuantity])
	assert.Equal(t, "4600.000", rec.Fields[record.FieldValueUSDMillion])
	assert.Equal(t, "February", rec.Fields[record.FieldSigningMonth])
	assert.Equal(t, 100.0, rec.Score)
	assert.Empty(t, rec.Annotation)

	for _, f := range record.TargetFields {
		assert.NotEmpty(t, rec.Fields[f], "field %q", f)
	}

	// The finished record lands back in the memory.
	assert.Equal(t, 1, p.Memory().Len())
}

func TestPreFlagOverridesSupplier(t *testing.T) {
	p := newPipeline(t, fullFake())

	rec := p.Process(context.Background(), Row{
		Description:  "several awards bundled under one notice",
		ContractDate: "05/02/2025",
		PreFlag:      "multiple",
	})

	assert.Equal(t, record.Multiple, rec.Fields[record.FieldSupplierName])
}

func TestStageFailureIsAnnotatedNotFatal(t *testing.T) {
	fake := fullFake()
	fake.failStage = "geography"
	p := newPipeline(t, fake)

	rec := p.Process(context.Background(), Row{
		Description:  "frigate maintenance package",
		ContractDate: "05/02/2025",
	})

	assert.Contains(t, rec.Annotation, "geography stage")
	assert.Equal(t, record.Unknown, rec.Fields[record.FieldCustomerCountry])
	assert.Equal(t, "G2G", rec.Fields[record.FieldDealType])
	for _, f := range record.TargetFields {
		assert.NotEmpty(t, rec.Fields[f], "field %q", f)
	}
}

func TestLaterRowsGroundOnEarlierOnes(t *testing.T) {
	fake := fullFake()
	p := newPipeline(t, fake)
	ctx := context.Background()

	_, err := p.ProcessBatch(ctx, []Row{
		{Description: "Poland buys 32 F-35A fighter jets", ContractDate: "05/02/2025"},
		{Description: "Poland orders additional F-35A fighter jets", ContractDate: "06/02/2025"},
	})
	require.NoError(t, err)

	// The second taxonomy prompt carries the first row as a grounding example.
	assert.Equal(t, 1, fake.promptCount("[Past Input]"))
	assert.Equal(t, 2, p.Memory().Len())
}

func TestBatchStopsOnCancellation(t *testing.T) {
	p := newPipeline(t, fullFake())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := p.ProcessBatch(ctx, []Row{{Description: "anything"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
}

func TestOpenMemoryDegradesOnBadPath(t *testing.T) {
	cfg := testConfig()
	cfg.Memory.DatabasePath = filepath.Join(t.TempDir(), "missing", "nested", "mem.db")

	mem, closeStore, err := OpenMemory(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	assert.Equal(t, 0, mem.Len())
}

func TestReadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	data := "Description of Contract,Contract Date,Flag\n" +
		"\"Poland buys 32 F-35A fighter jets\",05/02/2025,\n" +
		",05/02/2025,\n" +
		"\"bundled awards\",06/02/2025,Multiple\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := ReadRows(path)
	require.NoError(t, err)
	require.Len(t, rows, 2) // blank description skipped

	assert.Equal(t, "Poland buys 32 F-35A fighter jets", rows[0].Description)
	assert.Equal(t, "05/02/2025", rows[0].ContractDate)
	assert.Equal(t, "Multiple", rows[1].PreFlag)
}

func TestReadRowsRequiresDescriptionColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("Contract Date\n05/02/2025\n"), 0o644))

	_, err := ReadRows(path)
	assert.Error(t, err)
}

func TestWriteRecords(t *testing.T) {
	p := newPipeline(t, fullFake())
	rec := p.Process(context.Background(), Row{
		Description:  "Poland buys 32 F-35A fighter jets",
		ContractDate: "05/02/2025",
	})

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteRecords(path, []*record.Record{rec}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, "Customer Region,"))
	assert.Contains(t, out, "Validation Score,Notes")
	assert.Contains(t, out, "Lockheed Martin")
	assert.Contains(t, out, "100.00")
}
