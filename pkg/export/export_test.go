package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRendersHeadersAndRows(t *testing.T) {
	data := Dataset{
		Headers: []string{"rating", "review"},
		Rows: []map[string]string{
			{"rating": "5", "review": "Great, clear explanations"},
			{"rating": "4", "review": "=HYPERLINK(\"x\")"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	expected := "rating,review\n5,\"Great, clear explanations\"\n4,\"'=HYPERLINK(\"\"x\"\")\"\n"
	assert.Equal(t, expected, string(out))
}

func TestCSVExporterEscapesControlPrefixes(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"review"},
		Rows:    []map[string]string{{"review": "\tcmd"}, {"review": "-2+3"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "review\n'\tcmd\n'-2+3\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRendersReceipt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := NewPDFExporter().RenderReceipt(Receipt{
		SessionID:       "sess-1",
		StudentWallet:   "student-wallet",
		TutorID:         "tutor-1",
		ScheduledTime:   now.Add(-2 * time.Hour),
		DurationMinutes: 60,
		Amount:          25,
		ReleaseReason:   "both_confirmed",
		TransactionHash: "dHgtc2Vzcy0x",
		CompletedAt:     now,
		IssuedAt:        now,
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresSession(t *testing.T) {
	_, err := NewPDFExporter().RenderReceipt(Receipt{})
	require.Error(t, err)
}
