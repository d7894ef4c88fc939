package export

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webreplay/backend/internal/models"
)

func sampleFlow(t *testing.T) *models.Flow {
	t.Helper()
	flow := &models.Flow{
		ID:             "original-id",
		Name:           "Checkout",
		Description:    "Buy one item",
		StartURL:       "https://shop.example.com",
		CronExpression: "0 6 * * *",
		UserID:         42,
	}
	steps := []models.RecordedStep{
		{
			ID:     "step-1",
			Type:   models.StepNavigation,
			Target: models.PageSelector(),
			Value:  "https://shop.example.com/cart",
		},
		{
			ID:    "step-2",
			Type:  models.StepClick,
			Target: models.ElementSelector{CSS: "#checkout", TagName: "button"},
		},
	}
	require.NoError(t, flow.SetSteps(steps))
	return flow
}

func TestExportImportRoundTrip(t *testing.T) {
	data, err := ExportFlow(sampleFlow(t))
	require.NoError(t, err)

	flows, err := Import(data, 7)
	require.NoError(t, err)
	require.Len(t, flows, 1)

	got := flows[0]
	assert.Equal(t, "Checkout", got.Name)
	assert.Equal(t, "https://shop.example.com", got.StartURL)
	assert.Equal(t, "0 6 * * *", got.CronExpression)
	assert.Equal(t, uint(7), got.UserID)

	steps, err := got.GetSteps()
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepNavigation, steps[0].Type)
	assert.Equal(t, "#checkout", steps[1].Target.CSS)
}

func TestImportRegeneratesAllIdentities(t *testing.T) {
	data, err := ExportFlow(sampleFlow(t))
	require.NoError(t, err)

	flows, err := Import(data, 7)
	require.NoError(t, err)

	got := flows[0]
	assert.NotEqual(t, "original-id", got.ID)
	assert.NotEmpty(t, got.ID)

	steps, err := got.GetSteps()
	require.NoError(t, err)
	assert.NotEqual(t, "step-1", steps[0].ID)
	assert.NotEqual(t, "step-2", steps[1].ID)
	assert.NotEqual(t, steps[0].ID, steps[1].ID)

	// Two imports of the same envelope never collide.
	again, err := Import(data, 7)
	require.NoError(t, err)
	assert.NotEqual(t, got.ID, again[0].ID)
}

func TestExportStripsServerIdentity(t *testing.T) {
	data, err := ExportFlow(sampleFlow(t))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, FormatVersion, raw["version"])

	flow := raw["flow"].(map[string]any)
	assert.NotContains(t, flow, "id")
	assert.NotContains(t, flow, "user_id")
}

func TestImportRejectsUnknownVersion(t *testing.T) {
	_, err := Import([]byte(`{"version":99,"flow":{"name":"x","start_url":"https://x"}}`), 1)
	assert.ErrorContains(t, err, "unsupported export version")
}

func TestImportRejectsEmptyEnvelope(t *testing.T) {
	_, err := Import([]byte(`{"version":1}`), 1)
	assert.ErrorContains(t, err, "no flows")
}

func TestImportValidatesBeforeBuildingAnything(t *testing.T) {
	env := `{
		"version": 1,
		"flows": [
			{"name": "good", "start_url": "https://a.example.com", "steps": []},
			{"name": "", "start_url": "https://b.example.com", "steps": []}
		]
	}`
	flows, err := Import([]byte(env), 1)
	assert.Error(t, err)
	assert.Nil(t, flows)
}

func TestImportRejectsMalformedSteps(t *testing.T) {
	env := `{
		"version": 1,
		"flow": {
			"name": "bad steps",
			"start_url": "https://a.example.com",
			"steps": [{"type": "teleport"}]
		}
	}`
	_, err := Import([]byte(env), 1)
	assert.ErrorContains(t, err, "unknown type")
}

func TestBatchExport(t *testing.T) {
	f1 := sampleFlow(t)
	f2 := sampleFlow(t)
	f2.Name = "Second"

	data, err := ExportFlows([]models.Flow{*f1, *f2})
	require.NoError(t, err)

	flows, err := Import(data, 3)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	assert.Equal(t, "Checkout", flows[0].Name)
	assert.Equal(t, "Second", flows[1].Name)
}
