package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacAttak/riskscan/pkg/scoring"
	"github.com/MacAttak/riskscan/pkg/trigger"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "riskscan")
}

func TestScanCmd_FindsSSN(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	require.NoError(t, os.WriteFile(path, []byte("Employee SSN: 078-05-1120"), 0o644))

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"scan", path})
	require.NoError(t, cmd.Execute())

	var result scanOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	require.NotEmpty(t, result.Labels)
	assert.Equal(t, "SSN", result.Labels[0].EntityType)
}

func TestScoreCmd_ReadsFromInputFile(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.json")
	payload := map[string]interface{}{
		"labels": []scoring.LabelSummary{
			{EntityType: "SSN", Count: 1, ConfidenceAvg: 0.95},
		},
		"context": scoring.ExposureContext{
			Exposure:      scoring.ExposurePublic,
			Encryption:    scoring.EncryptionNone,
			StalenessDays: 1,
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(inputPath, raw, 0o644))

	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"score", "--input", inputPath})
	require.NoError(t, cmd.Execute())

	var result scoreOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.True(t, result.ShouldRescan)
	assert.Contains(t, result.Triggers, trigger.PublicAccess)
}

func TestIndexCmd_PutGetDelete(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "labels.db")
	configPath := filepath.Join(dir, "riskscan.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("label_index:\n  path: "+dbPath+"\n"), 0o644))

	labelsPath := filepath.Join(dir, "labels.json")
	require.NoError(t, os.WriteFile(labelsPath, []byte(`{"v":1,"labels":[{"t":"EMAIL","n":1,"c":0.8,"d":"pattern","h":"abc123"}],"src":"test:1","ts":1}`), 0o644))

	put := newRootCmd()
	put.SetArgs([]string{"--config", configPath, "index", "put", "obj-1", "--labels", labelsPath})
	require.NoError(t, put.Execute())

	get := newRootCmd()
	out := &bytes.Buffer{}
	get.SetOut(out)
	get.SetArgs([]string{"--config", configPath, "index", "get", "obj-1"})
	require.NoError(t, get.Execute())
	assert.Contains(t, out.String(), "EMAIL")

	del := newRootCmd()
	del.SetArgs([]string{"--config", configPath, "index", "delete", "obj-1"})
	require.NoError(t, del.Execute())
}
