package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name:     "missing host",
			config:   Config{Port: "587", From: "noreply@example.com"},
			expected: false,
		},
		{
			name:     "missing from",
			config:   Config{Host: "smtp.example.com", Port: "587"},
			expected: false,
		},
		{
			name:     "fully configured",
			config:   Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewService(tt.config).IsConfigured())
		})
	}
}

type capturedMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService(t *testing.T) (*Service, *capturedMail) {
	t.Helper()
	svc := NewService(Config{Host: "smtp.example.com", Port: "587", From: "noreply@example.com", FromName: "CleanStreet"})
	captured := &capturedMail{}
	svc.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	return svc, captured
}

func TestSendStatusChange(t *testing.T) {
	svc, captured := newCapturingService(t)

	err := svc.SendStatusChange("ana@example.com", StatusChangeData{
		UserName:   "Ana",
		Title:      "Overflowing bin",
		OldStatus:  "received",
		NewStatus:  "in_review",
		AssignedTo: "Crew 7",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", captured.addr)
	assert.Equal(t, "noreply@example.com", captured.from)
	assert.Equal(t, []string{"ana@example.com"}, captured.to)
	assert.Contains(t, captured.msg, "From: CleanStreet <noreply@example.com>\r\n")
	assert.Contains(t, captured.msg, `Subject: Your complaint "Overflowing bin" is now In review`)
	assert.Contains(t, captured.msg, "moved from Received to <span class=\"status\">In review</span>")
	assert.Contains(t, captured.msg, "assigned to Crew 7")
	assert.True(t, strings.HasSuffix(captured.msg, "--cleanstreet-boundary--\r\n"))
}

func TestSendStatusChangeEscapesHTML(t *testing.T) {
	svc, captured := newCapturingService(t)

	require.NoError(t, svc.SendStatusChange("ana@example.com", StatusChangeData{
		UserName:  "Ana",
		Title:     "<script>bin</script>",
		OldStatus: "in_review",
		NewStatus: "resolved",
	}))
	assert.Contains(t, captured.msg, "&lt;script&gt;bin&lt;/script&gt;")
	assert.NotContains(t, captured.msg, "assigned to")
}

func TestSendHTMLEmailRejectsHeaderInjection(t *testing.T) {
	svc, captured := newCapturingService(t)

	err := svc.SendHTMLEmail([]string{"ana@example.com\r\nBcc: evil@example.com"}, "hi", "text", "<p>html</p>")
	require.Error(t, err)
	assert.Empty(t, captured.msg)
}

func TestSendWithoutConfig(t *testing.T) {
	err := NewService(Config{}).SendStatusChange("ana@example.com", StatusChangeData{Title: "x"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
