package dto

import "time"

// UploadFile is one file taken off a multipart request.
type UploadFile struct {
	Name string
	Data []byte
}

type DocumentResponse struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FailedUpload struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type UploadDocumentsResponse struct {
	Uploaded []string       `json:"uploaded"`
	Count    int            `json:"count"`
	Failed   []FailedUpload `json:"failed,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []DocumentResponse `json:"documents"`
	Files     []string           `json:"files"`
	Count     int                `json:"count"`
}

type ReindexResponse struct {
	Mode  string `json:"mode"`
	Count int    `json:"count"`
}
