package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Receipt is the content of a settlement receipt.
type Receipt struct {
	Title           string
	SessionID       string
	CourseID        string
	StudentWallet   string
	TutorID         string
	TutorWallet     string
	ScheduledTime   time.Time
	DurationMinutes int
	Amount          float64
	ReleaseReason   string
	TransactionHash string
	EscrowAccount   string
	CompletedAt     time.Time
	IssuedAt        time.Time
}

// PDFExporter renders receipts as single-page PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderReceipt lays out the receipt as a two column table.
func (e *PDFExporter) RenderReceipt(r Receipt) ([]byte, error) {
	if r.SessionID == "" {
		return nil, fmt.Errorf("receipt requires a session id")
	}
	title := r.Title
	if title == "" {
		title = "Session Settlement Receipt"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.SetTitle(title, false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, "Issued "+r.IssuedAt.UTC().Format(time.RFC1123), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Session", r.SessionID},
		{"Course", orDash(r.CourseID)},
		{"Student wallet", r.StudentWallet},
		{"Tutor", r.TutorID},
		{"Tutor wallet", orDash(r.TutorWallet)},
		{"Scheduled", r.ScheduledTime.UTC().Format("2006-01-02 15:04 MST")},
		{"Duration", fmt.Sprintf("%d minutes", r.DurationMinutes)},
		{"Amount released", fmt.Sprintf("$%.2f", r.Amount)},
		{"Release reason", r.ReleaseReason},
		{"Escrow reference", orDash(r.EscrowAccount)},
		{"Transaction", orDash(r.TransactionHash)},
		{"Completed", r.CompletedAt.UTC().Format(time.RFC3339)},
	}

	const labelWidth, valueWidth = 50.0, 130.0
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(labelWidth, 8, row[0], "1", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(valueWidth, 8, row[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 5, "Funds were held in escrow from booking until release. This receipt is informational and does not represent an on-chain settlement.", "", "L", false)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}
