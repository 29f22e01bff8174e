package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RequiresDeviceType(t *testing.T) {
	msg := InboundMessage{DeviceName: "Chem Analyzer"}
	err := msg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_type")
}

func TestValidate_ConnectionMethod(t *testing.T) {
	testCases := []struct {
		name    string
		method  ConnectionMethod
		wantErr bool
	}{
		{"empty is allowed", "", false},
		{"serial", ConnectionSerial, false},
		{"file", ConnectionFile, false},
		{"unknown method rejected", "bluetooth", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := InboundMessage{DeviceType: "chem", ConnectionMethod: tc.method}
			err := msg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPatientLabel(t *testing.T) {
	pid := int64(412)

	testCases := []struct {
		name string
		msg  InboundMessage
		want string
	}{
		{"identifier wins over id", InboundMessage{PatientIdentifier: "P100", PatientID: &pid}, "P100"},
		{"numeric id fallback", InboundMessage{PatientID: &pid}, "412"},
		{"unknown placeholder", InboundMessage{}, "Unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.msg.PatientLabel())
		})
	}
}
