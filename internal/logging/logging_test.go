package logging

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"production json", Options{Level: "info", Encoding: "json"}, false},
		{"console warn", Options{Level: "warn", Encoding: "console"}, false},
		{"development ignores level", Options{Level: "nonsense", Development: true}, false},
		{"bad level", Options{Level: "loud"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if tt.opts.Level == "warn" && logger.Core().Enabled(-1) {
				t.Error("Expected debug to be disabled at warn")
			}
		})
	}
}
