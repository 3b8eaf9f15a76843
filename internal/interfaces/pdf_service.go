package interfaces

// PDFService renders match reports for download
type PDFService interface {
	// ConvertMarkdownToPDF renders a markdown report to PDF bytes
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)
}
