package models

// CertificateData holds the fields extracted from a certificate image.
type CertificateData struct {
	RecipientName    string `json:"recipient_name"`
	CertificateID    string `json:"certificate_id"`
	CourseTitle      string `json:"course_title"`
	IssuingAuthority string `json:"issuing_authority"`
	IssueDate        string `json:"issue_date"`
}

// VerificationStatus is the outcome of verifying one uploaded certificate.
type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "Verified"
	VerificationFailed   VerificationStatus = "Failed"
)

// VerificationResult is produced per file by a bulk verification run.
type VerificationResult struct {
	FileName    string             `json:"file_name"`
	Status      VerificationStatus `json:"status"`
	Data        *CertificateData   `json:"data,omitempty"`
	Error       string             `json:"error,omitempty"`
	ImageBase64 string             `json:"image_base64,omitempty"`
	MIMEType    string             `json:"mime_type,omitempty"`
}

// UploadedFile is an in-memory upload handed to the assistant.
type UploadedFile struct {
	Name     string
	MIMEType string
	Data     []byte
}
