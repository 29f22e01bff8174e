package engine

import "github.com/clinicdesk/devicelink/internal/session"

// IsDuplicateFile reports whether candidate matches an already-accepted
// pending file on (deviceName, fileName, byteLength).
//
// Only standalone files are deduplicated. Grouped parameter messages are
// not: instruments legitimately resend a corrected reading under the same
// parameter code, and suppressing those would drop data.
func IsDuplicateFile(existing []*session.PendingFile, candidate session.FileIdentity) bool {
	for _, f := range existing {
		if f.Identity() == candidate {
			return true
		}
	}
	return false
}
