package domain

import "time"

type ReceiptUpload struct {
	Content          []byte
	ContentType      string
	OriginalFilename string
	UploadedAt       time.Time
}

type Receipt struct {
	Token string
	URL   string
}
