package util

const (
	MimeVideo       = "video/"
	MimeImage       = "image/"
	MimePDF         = "application/pdf"
	MimeOctetStream = "application/octet-stream"
	MimeZip         = "application/zip"
	MimeText        = "text/plain"
)

// AllowedEvidenceMimeTypes are the sniffed content types accepted for evidence.
// Office documents sniff as zip (docx) or octet-stream (doc).
var AllowedEvidenceMimeTypes = []string{MimePDF, MimeImage, MimeVideo, MimeZip, MimeOctetStream, MimeText}

const (
	EvidenceFolder = "evidence"
)
