package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/quelldemo/pkg/models"
)

const payload = `{"countries":[{"name":"Norway","cities":[{"name":"Oslo"},{"name":"Bergen"}]},{"name":"Chile","cities":[]}]}`

func TestPayloadPretty(t *testing.T) {
	out, err := Payload(json.RawMessage(`{"a":1}`), "")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", out)

	_, err = Payload(json.RawMessage(`{`), "")
	assert.Error(t, err)
}

func TestPayloadJQ(t *testing.T) {
	out, err := Payload(json.RawMessage(payload), ".countries[].name")
	require.NoError(t, err)
	assert.Equal(t, "\"Norway\"\n\"Chile\"", out)

	out, err = Payload(json.RawMessage(payload), "[.countries[].cities | length]")
	require.NoError(t, err)
	assert.Equal(t, "[\n  2,\n  0\n]", out)
}

func TestPayloadJQErrors(t *testing.T) {
	_, err := Payload(json.RawMessage(payload), ".countries[")
	assert.ErrorContains(t, err, "invalid jq expression")

	_, err = Payload(json.RawMessage(payload), ".countries.name")
	assert.ErrorContains(t, err, "jq:")
}

func TestSnapshot(t *testing.T) {
	snap := models.Snapshot{
		ResponseTimesMs: []float64{120, 4, 80, 2},
		QueryTypeLabels: []string{"2depth", "2depth", "costly", "2depth"},
		CacheHitCount:   2,
		CacheMissCount:  2,
		ErrorLog:        []string{"Invalid query"},
	}

	var buf bytes.Buffer
	require.NoError(t, Snapshot(&buf, snap))
	out := buf.String()

	assert.Contains(t, out, "Queries: 4  Hits: 2  Misses: 2  Hit rate: 50.0%")
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "Errors (1):")
	assert.Contains(t, out, "  - Invalid query")

	var rowLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "2depth ") {
			rowLine = line
			break
		}
	}
	require.NotEmpty(t, rowLine, out)
	assert.Equal(t, []string{"2depth", "3", "2.00", "42.00", "120.00"}, strings.Fields(rowLine))
}

func TestSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Snapshot(&buf, models.Snapshot{}))
	assert.Equal(t, "Queries: 0  Hits: 0  Misses: 0  Hit rate: 0.0%\n", buf.String())
}

func TestChart(t *testing.T) {
	snap := models.Snapshot{
		ResponseTimesMs: []float64{100, 50, 0.1},
		QueryTypeLabels: []string{"a", "bb", "a"},
	}
	var buf bytes.Buffer
	require.NoError(t, Chart(&buf, snap))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, barWidth, strings.Count(lines[0], "#"))
	assert.Equal(t, barWidth/2, strings.Count(lines[1], "#"))
	assert.Equal(t, 1, strings.Count(lines[2], "#"), "tiny values still get a bar")
	assert.True(t, strings.HasPrefix(lines[1], "  2 bb "))
}
