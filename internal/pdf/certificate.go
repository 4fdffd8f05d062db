package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// Letter page in points.
const (
	pageWidth  = 612.0
	pageHeight = 792.0
	inch       = 72.0
)

// Palette for the certificate.
var (
	gold     = rgb{0xC9, 0xA2, 0x27}
	navy     = rgb{0x1a, 0x36, 0x5d}
	darkGray = rgb{0x2d, 0x37, 0x48}
)

type rgb struct{ r, g, b int }

// Certificate holds everything printed on the classification document.
type Certificate struct {
	UserName           string
	NorwoodStage       int
	NorwoodVariant     string
	Confidence         float64
	ClinicalAssessment string
	CertifiedAt        time.Time
}

// Render produces the university-style certificate PDF.
func Render(cert Certificate) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	drawBorder(doc)

	setText(doc, navy)
	doc.SetFont("Times", "B", 22)
	centered(doc, 1.3*inch, "CERTIFICATE OF NORWOOD CLASSIFICATION")

	setText(doc, darkGray)
	doc.SetFont("Times", "I", 14)
	centered(doc, 2*inch, "Official Hair Loss Assessment")

	setDraw(doc, gold)
	doc.SetLineWidth(2)
	doc.Line(1.5*inch, 2.3*inch, pageWidth-1.5*inch, 2.3*inch)

	setText(doc, darkGray)
	doc.SetFont("Times", "", 12)
	centered(doc, 3*inch, "This is to certify that")

	name := cert.UserName
	if strings.TrimSpace(name) == "" {
		name = "Anonymous"
	}
	setText(doc, navy)
	doc.SetFont("Times", "B", 24)
	centered(doc, 3.5*inch, name)

	nameWidth := doc.GetStringWidth(name)
	setDraw(doc, gold)
	doc.SetLineWidth(1)
	doc.Line((pageWidth-nameWidth)/2-20, 3.6*inch, (pageWidth+nameWidth)/2+20, 3.6*inch)

	setText(doc, darkGray)
	doc.SetFont("Times", "", 12)
	centered(doc, 4.1*inch, "has been officially classified as")

	stageText := fmt.Sprintf("NORWOOD STAGE %d%s", cert.NorwoodStage, cert.NorwoodVariant)
	setText(doc, navy)
	doc.SetFont("Times", "B", 36)
	centered(doc, 4.8*inch, stageText)

	setText(doc, darkGray)
	doc.SetFont("Times", "I", 11)
	centered(doc, 5.2*inch, fmt.Sprintf("Classification Confidence: %d%%", int(cert.Confidence*100)))

	// Clinical assessment box.
	setDraw(doc, gold)
	doc.SetLineWidth(0.5)
	doc.Rect(1*inch, 5.7*inch, pageWidth-2*inch, 1.8*inch, "D")

	setText(doc, navy)
	doc.SetFont("Times", "B", 10)
	doc.Text(1.2*inch, 5.9*inch, "CLINICAL ASSESSMENT")

	setText(doc, darkGray)
	doc.SetFont("Times", "", 9)
	doc.SetXY(1.2*inch, 6.0*inch)
	doc.MultiCell(pageWidth-2.4*inch, 12, cert.ClinicalAssessment, "", "L", false)

	doc.SetFont("Times", "", 11)
	centered(doc, 8*inch, fmt.Sprintf("Certified on %s", cert.CertifiedAt.Format("January 2, 2006")))

	// Signature section.
	sigY := 9.2 * inch
	setDraw(doc, darkGray)
	doc.SetLineWidth(0.5)
	doc.Line(1.5*inch, sigY, 3.5*inch, sigY)

	doc.SetFont("Times", "", 9)
	doc.Text(1.5*inch, sigY+0.25*inch, "President & Founder")
	doc.Text(1.5*inch, sigY+0.45*inch, "Norwood AI")

	drawSeal(doc, pageWidth-2.5*inch+0.6*inch, sigY-0.1*inch)

	setText(doc, darkGray)
	doc.SetFont("Times", "I", 8)
	centered(doc, pageHeight-0.5*inch, "This certificate is for educational and entertainment purposes only. Not a medical diagnosis.")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBorder(doc *fpdf.Fpdf) {
	margin := 0.5 * inch
	setDraw(doc, gold)
	doc.SetLineWidth(3)
	doc.Rect(margin, margin, pageWidth-2*margin, pageHeight-2*margin, "D")

	doc.SetLineWidth(1)
	inner := 0.7 * inch
	doc.Rect(inner, inner, pageWidth-2*inner, pageHeight-2*inner, "D")

	// Corner flourishes.
	flourish := 0.3 * inch
	doc.SetLineWidth(2)
	corners := []struct{ x, y, dx, dy float64 }{
		{margin + 0.1*inch, margin + 0.1*inch, 1, 1},
		{pageWidth - margin - 0.1*inch, margin + 0.1*inch, -1, 1},
		{margin + 0.1*inch, pageHeight - margin - 0.1*inch, 1, -1},
		{pageWidth - margin - 0.1*inch, pageHeight - margin - 0.1*inch, -1, -1},
	}
	for _, c := range corners {
		doc.Line(c.x, c.y, c.x+c.dx*flourish, c.y)
		doc.Line(c.x, c.y, c.x, c.y+c.dy*flourish)
	}
}

func drawSeal(doc *fpdf.Fpdf, x, y float64) {
	setDraw(doc, gold)
	doc.SetLineWidth(2)
	doc.Circle(x, y, 0.6*inch, "D")
	doc.SetLineWidth(1)
	doc.Circle(x, y, 0.5*inch, "D")
	setText(doc, gold)
	doc.SetFont("Times", "B", 8)
	sealText := "OFFICIAL SEAL"
	doc.Text(x-doc.GetStringWidth(sealText)/2, y+3, sealText)
}

func centered(doc *fpdf.Fpdf, y float64, text string) {
	doc.Text((pageWidth-doc.GetStringWidth(text))/2, y, text)
}

func setText(doc *fpdf.Fpdf, c rgb) {
	doc.SetTextColor(c.r, c.g, c.b)
}

func setDraw(doc *fpdf.Fpdf, c rgb) {
	doc.SetDrawColor(c.r, c.g, c.b)
}
