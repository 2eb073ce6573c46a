package shell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		sysEnv    []string
		overrides map[string]string
		expected  []string
	}{
		{
			name:     "allow-listed only",
			sysEnv:   []string{"USER=test", "PATH=/bin", "HOME=/home/test"},
			expected: []string{"HOME=/home/test", "PATH=/bin", "USER=test"},
		},
		{
			name:     "filters the rest",
			sysEnv:   []string{"USER=test", "SSH_AUTH_SOCK=/tmp/ssh", "SECRET=key", "malformed"},
			expected: []string{"USER=test"},
		},
		{
			name:      "overrides win",
			sysEnv:    []string{"USER=test", "PATH=/bin"},
			overrides: map[string]string{"PATH": "/custom/bin", "MEMO_OUTPUT_DIR": "/out"},
			expected:  []string{"MEMO_OUTPUT_DIR=/out", "PATH=/custom/bin", "USER=test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveEnvironment(tt.sysEnv, tt.overrides))
		})
	}
}

func TestLookPath(t *testing.T) {
	_, err := lookPath("sh", []string{"HOME=/root"})
	assert.Error(t, err, "no PATH means nothing is found")

	got, err := lookPath("sh", []string{"PATH=/nonexistent:/bin"})
	if err == nil {
		assert.Equal(t, "/bin/sh", got)
	}
}
