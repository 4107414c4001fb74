package domain

import (
	"testing"
)

// FuzzParseSessionID checks that parsing never panics on arbitrary input and
// always returns either a usable ID or an error, never both.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add("'; DROP TABLE sessions;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err == nil && id.IsNil() {
			t.Errorf("ParseSessionID(%q) returned nil ID without error", input)
		}
		if err != nil && !id.IsNil() {
			t.Errorf("ParseSessionID(%q) returned both an ID and an error", input)
		}
	})
}
