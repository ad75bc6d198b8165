package permissions

import (
	"errors"
	"testing"
)

type mockChecker struct {
	mic       Status
	ax        bool
	requested int
}

func (m *mockChecker) Microphone() Status  { return m.mic }
func (m *mockChecker) RequestMicrophone()  { m.requested++ }
func (m *mockChecker) Accessibility() bool { return m.ax }

func TestEnsure(t *testing.T) {
	tests := []struct {
		name      string
		mic       Status
		ax        bool
		hotkeys   bool
		wantErr   error
		requested int
	}{
		{"all granted", StatusAuthorized, true, true, nil, 0},
		{"hotkeys not needed", StatusAuthorized, false, false, nil, 0},
		{"accessibility missing", StatusAuthorized, false, true, ErrAccessibility, 0},
		{"microphone undecided", StatusNotDetermined, true, true, ErrMicrophone, 1},
		{"microphone denied", StatusDenied, true, false, ErrMicrophone, 0},
		{"microphone restricted", StatusRestricted, true, false, ErrMicrophone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockChecker{mic: tt.mic, ax: tt.ax}
			err := Ensure(m, tt.hotkeys)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Ensure() = %v, want %v", err, tt.wantErr)
			}
			if m.requested != tt.requested {
				t.Errorf("RequestMicrophone called %d times, want %d", m.requested, tt.requested)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusDenied.String(); got != "denied" {
		t.Errorf("StatusDenied.String() = %q", got)
	}
	if got := Status(9).String(); got != "unknown" {
		t.Errorf("Status(9).String() = %q", got)
	}
}
