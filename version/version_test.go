package version

import "testing"

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		build    string
		expected string
	}{
		{build: "", expected: "0.1.0"},
		{build: "dev", expected: "0.1.0-dev"},
		{build: "rc-1", expected: "0.1.0-rc-1"},
		{build: "bad build", expected: "0.1.0"},
		{build: "v1.0", expected: "0.1.0"},
	}
	for _, test := range tests {
		got := formatVersion(test.build)
		if got != test.expected {
			t.Fatalf("TestFormatVersion: build %q: expected %q but got %q", test.build, test.expected, got)
		}
	}

	if Version() != formatVersion(appBuild) {
		t.Fatalf("TestFormatVersion: Version() returned %q", Version())
	}
}
