package swap

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestSelector_Latest(t *testing.T) {
	first := sampleEvent()
	second := sampleEvent()
	second.Tick = -14400
	second.ZeroForOne = false

	tests := []struct {
		name     string
		lines    []string
		want     SwapEvent
		wantOK   bool
		failures []string
	}{
		{
			name:   "empty bundle",
			lines:  nil,
			wantOK: false,
		},
		{
			name: "no program data",
			lines: []string{
				"Program CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK invoke [1]",
				"Program log: Instruction: Swap",
				"Program CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK success",
			},
			wantOK: false,
		},
		{
			name: "single swap among noise",
			lines: []string{
				"Program CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK invoke [1]",
				"Program log: Instruction: Swap",
				EncodeLine(first),
				"Program CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK consumed 50123 of 200000 compute units",
			},
			want:   first,
			wantOK: true,
		},
		{
			name:   "last of two swaps wins",
			lines:  []string{EncodeLine(first), "Program log: route", EncodeLine(second)},
			want:   second,
			wantOK: true,
		},
		{
			name:     "garbage after the swap is skipped",
			lines:    []string{EncodeLine(first), ProgramDataPrefix + "%%%"},
			want:     first,
			wantOK:   true,
			failures: []string{ReasonInvalidBase64},
		},
		{
			name:     "scan stops at first match from the end",
			lines:    []string{ProgramDataPrefix + "%%%", EncodeLine(second)},
			want:     second,
			wantOK:   true,
			failures: nil,
		},
		{
			name:     "only undecodable lines",
			lines:    []string{ProgramDataPrefix + "AQID", ProgramDataPrefix + "%%%"},
			wantOK:   false,
			failures: []string{ReasonInvalidBase64, ReasonShortPayload},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var failures []string
			s := NewSelector(zaptest.NewLogger(t), func(reason string) {
				failures = append(failures, reason)
			})

			got, ok := s.Latest(tt.lines)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if len(failures) != len(tt.failures) {
				t.Fatalf("failures = %v, want %v", failures, tt.failures)
			}
			for i := range failures {
				if failures[i] != tt.failures[i] {
					t.Errorf("failures[%d] = %s, want %s", i, failures[i], tt.failures[i])
				}
			}
		})
	}
}

func TestSelector_NilLoggerAndHook(t *testing.T) {
	s := NewSelector(nil, nil)
	if _, ok := s.Latest([]string{ProgramDataPrefix + "%%%"}); ok {
		t.Error("expected no match")
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Program log: hi", ""},
		{ProgramDataPrefix + "%%%", ReasonInvalidBase64},
		{ProgramDataPrefix + "AQID", ReasonShortPayload},
		{ProgramDataPrefix + "AAAAAAAAAAAA", ""},
		{EncodeLine(sampleEvent())[:len(ProgramDataPrefix)+16], ReasonMalformed},
	}

	for _, tt := range tests {
		_, err := DecodeLine(tt.line)
		if got := FailureReason(err); got != tt.want {
			t.Errorf("FailureReason(%q) = %q, want %q (err %v)", tt.line, got, tt.want, err)
		}
	}
}
