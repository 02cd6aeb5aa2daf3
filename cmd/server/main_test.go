package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOutput(t *testing.T) {
	data := []byte("Date,Heure\n")

	// GIVEN: a file target
	path := filepath.Join(t.TempDir(), "mileage_report.csv")
	var stdout bytes.Buffer

	// WHEN: writing the report
	require.NoError(t, writeOutput(&stdout, path, data))

	// THEN: the file has the bytes and stdout stays untouched
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Zero(t, stdout.Len())

	require.NoError(t, writeOutput(&stdout, "-", data))
	assert.Equal(t, data, stdout.Bytes())

	err = writeOutput(&stdout, filepath.Join(t.TempDir(), "missing", "out.csv"), data)
	assert.Error(t, err)
}

func TestExportCmd_ShiftFlagAppliesToEveryKind(t *testing.T) {
	cmd := newExportCmd(nil)

	flag := cmd.Flags().Lookup("shift")
	require.NotNil(t, flag)
	assert.Equal(t, "1 or 2", flag.Usage)
	require.NotNil(t, cmd.Flags().Lookup("rider"))
}
