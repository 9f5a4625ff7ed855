package reports

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/carebridge/carebridge/internal/platform/completion"
)

const pdfTimeLayout = "02 Jan 2006 15:04 MST"

func renderPDF(rep *SymptomReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Symptom report "+rep.ID.String(), true)
	pdf.SetAuthor("CareBridge", true)
	// Core fonts are cp1252; translate so accented input does not garble.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Symptom Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "", 10)
	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(35, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	field("Report", rep.ID.String())
	field("Patient", rep.PatientID.String())
	field("Status", rep.Status)
	field("Submitted", rep.CreatedAt.UTC().Format(pdfTimeLayout))
	if rep.DoctorID != nil {
		field("Reviewed by", rep.DoctorID.String())
		field("Reviewed", rep.UpdatedAt.UTC().Format(pdfTimeLayout))
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Assessment", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(rep.ReportContent), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Conversation", "", 1, "L", false, 0, "")
	for _, m := range rep.ChatHistory {
		if m.Role == completion.RoleSystem {
			continue
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, speaker(m.Role), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(m.Content), "", "L", false)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func speaker(role string) string {
	switch role {
	case completion.RoleUser:
		return "Patient"
	case completion.RoleAssistant:
		return "Assistant"
	default:
		return role
	}
}
