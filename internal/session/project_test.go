package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/devicelink/internal/device"
)

func TestFlatten_LastWriteWins(t *testing.T) {
	params := []Parameter{
		{Code: "A", Value: "1"},
		{Code: "B", Value: "2"},
		{Code: "A", Value: "3"},
	}
	assert.Equal(t, map[string]string{"A": "3", "B": "2"}, Flatten(params))
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(nil))
}

func testSession() *DeviceSession {
	pid := int64(412)
	start := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &DeviceSession{
		ID:                "sess-0001",
		Key:               "chem|P100",
		DeviceType:        "chem",
		DeviceName:        "Chem Analyzer",
		ConnectionMethod:  device.ConnectionSerial,
		PatientID:         &pid,
		PatientIdentifier: "P100",
		SessionStart:      start,
		LastActivity:      start.Add(42 * time.Second),
		Parameters: []Parameter{
			{Code: "GLU", Value: "95", Unit: "mg/dL", ReceivedAt: start, Seq: 1},
			{Code: "BUN", Value: "14", ReceivedAt: start.Add(5 * time.Second), RawPayload: []byte("BUN|14"), Seq: 2},
		},
		Complete: true,
	}
}

func TestProject_Fields(t *testing.T) {
	res, err := Project(testSession())
	require.NoError(t, err)

	assert.Equal(t, "sess-0001", res.ID)
	assert.Equal(t, "chem", res.DeviceType)
	assert.Equal(t, "Chem Analyzer", res.DeviceName)
	assert.Equal(t, 2, res.ParameterCount)
	assert.False(t, res.SessionInProgress)
	assert.Equal(t, map[string]string{"GLU": "95", "BUN": "14"}, res.Results)
	assert.Equal(t, "Chem-Analyzer_session_P100.json", res.FileName)
	assert.Equal(t, PayloadMimeType, res.MimeType)
	require.NotNil(t, res.PatientID)
	assert.Equal(t, int64(412), *res.PatientID)
}

func TestProject_InProgress(t *testing.T) {
	s := testSession()
	s.Complete = false
	res, err := Project(s)
	require.NoError(t, err)
	assert.True(t, res.SessionInProgress)
}

func TestProject_PayloadIsValidJSON(t *testing.T) {
	res, err := Project(testSession())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(res.PayloadBytes, &doc))
	assert.Equal(t, "sess-0001", doc["sessionId"])
	assert.Equal(t, "chem", doc["deviceType"])
	assert.Equal(t, float64(2), doc["parameterCount"])
	assert.Equal(t, "2026-03-14T09:26:53Z", doc["sessionStart"])
	assert.Equal(t, "2026-03-14T09:27:35Z", doc["sessionEnd"])

	params, ok := doc["parameters"].([]any)
	require.True(t, ok)
	require.Len(t, params, 2)
	first := params[0].(map[string]any)
	assert.Equal(t, "GLU", first["code"])
	assert.Equal(t, "95", first["value"])
}

func TestProject_Idempotent(t *testing.T) {
	s := testSession()
	a, err := Project(s)
	require.NoError(t, err)
	b, err := Project(s)
	require.NoError(t, err)
	assert.Equal(t, a.PayloadBytes, b.PayloadBytes)
	assert.Equal(t, a, b)
}

func TestProject_OmitsAbsentPatientID(t *testing.T) {
	s := testSession()
	s.PatientID = nil
	res, err := Project(s)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(res.PayloadBytes, &doc))
	_, present := doc["patientId"]
	assert.False(t, present, "absent patient id must be omitted, not null")
}

func TestFromPendingFile(t *testing.T) {
	received := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	f := &PendingFile{
		ID:               "file-0001",
		DeviceType:       "ua-scanner",
		DeviceName:       "UA-Scanner",
		ConnectionMethod: device.ConnectionFile,
		FileName:         "result.pdf",
		FileBytes:        []byte("%PDF-1.4 ..."),
		MimeType:         "application/pdf",
		ReceivedAt:       received,
	}

	res := FromPendingFile(f)
	assert.Equal(t, "file-0001", res.ID)
	assert.Equal(t, "result.pdf", res.FileName)
	assert.Equal(t, f.FileBytes, res.PayloadBytes)
	assert.Equal(t, "application/pdf", res.MimeType)
	assert.Equal(t, received, res.SessionStart)
	assert.Equal(t, received, res.LastActivity)
	assert.False(t, res.SessionInProgress)
	assert.Zero(t, res.ParameterCount)
	assert.Nil(t, res.Results)
}

func TestFromPendingFile_CopiesPatientID(t *testing.T) {
	pid := int64(412)
	f := &PendingFile{ID: "file-0001", DeviceType: "ua-scanner", PatientID: &pid}

	res := FromPendingFile(f)
	require.NotNil(t, res.PatientID)
	*res.PatientID = 999

	assert.Equal(t, int64(412), *f.PatientID, "projection must not alias engine-owned state")
}

func TestResultFileName(t *testing.T) {
	testCases := []struct {
		name         string
		deviceName   string
		patientLabel string
		want         string
	}{
		{"spaces flattened", "Chem Analyzer", "P 100", "Chem-Analyzer_session_P-100.json"},
		{"plain", "IDEXX", "P100", "IDEXX_session_P100.json"},
		{"empty device", "", "P100", "device_session_P100.json"},
		{"empty patient", "IDEXX", "", "IDEXX_session_Unknown.json"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResultFileName(tc.deviceName, tc.patientLabel))
		})
	}
}

func TestSnapshot_DeepCopy(t *testing.T) {
	s := testSession()
	snap := s.Snapshot()

	snap.Parameters[0].Value = "mutated"
	*snap.PatientID = 999
	snap.PatientIdentifier = "other"

	assert.Equal(t, "95", s.Parameters[0].Value)
	assert.Equal(t, int64(412), *s.PatientID)
	assert.Equal(t, "P100", s.PatientIdentifier)
}

func TestPatientLabel_Session(t *testing.T) {
	s := testSession()
	assert.Equal(t, "P100", s.PatientLabel())

	s.PatientIdentifier = ""
	assert.Equal(t, "412", s.PatientLabel())

	s.PatientID = nil
	assert.Equal(t, "Unknown", s.PatientLabel())
}
