package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathAccessChecker_IsRestricted(t *testing.T) {
	policy := &SecurityPolicy{
		RestrictedPaths: []string{"/etc", "/usr/bin"},
	}
	checker := NewPathAccessChecker(policy)

	tests := []struct {
		name       string
		path       string
		baseDir    string
		restricted bool
	}{
		{"etc is restricted", "/etc/passwd", "", true},
		{"usr/bin is restricted", "/usr/bin/ls", "", true},
		{"home is not restricted", "/home/user/file.txt", "", false},
		{"subdir of restricted", "/etc/config/file", "", true},
		{"relative under restricted base", "passwd", "/etc", true},
		{"relative without base", "passwd", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.IsRestricted(tt.path, tt.baseDir)
			assert.Equal(t, tt.restricted, result, "IsRestricted(%s, %s)", tt.path, tt.baseDir)
		})
	}
}

func TestPathAccessChecker_EscapesRoot(t *testing.T) {
	checker := NewPathAccessChecker(&SecurityPolicy{MaxParentDepth: 2})

	tests := []struct {
		arg     string
		escapes bool
	}{
		{"..", false},
		{"../..", false},
		{"../../..", true},
		{"a/../../..", false},
		{"../x/../../..", true},
		{"/tmp/../etc", true},
		{"~/../root", true},
		{`C:\Users\..\Windows`, true},
		{`..\..\..\Windows`, true},
		{"docs/../notes", false},
		{"plain.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			assert.Equal(t, tt.escapes, checker.EscapesRoot(tt.arg))
		})
	}
}

func TestPathAccessChecker_ExtractPaths(t *testing.T) {
	checker := NewPathAccessChecker(&SecurityPolicy{})

	tests := []struct {
		name   string
		tokens []string
		paths  []string
	}{
		{"single file", []string{"cat", "/etc/passwd"}, []string{"/etc/passwd"}},
		{"multiple files", []string{"ls", "/etc", "/home"}, []string{"/etc", "/home"}},
		{"flag value", []string{"ls", "-l", "--dir=/var"}, []string{"/var"}},
		{"no args", []string{"pwd"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := checker.ExtractPaths(tt.tokens)
			assert.ElementsMatch(t, tt.paths, result)
		})
	}
}
