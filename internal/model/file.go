package model

// UploadedFile records one stored upload. The document ledger keeps only the
// Reference; bytes live under the storage root. Hash is the sha256 of the
// content, kept for dedupe lookups.
type UploadedFile struct {
	BaseModel
	Reference   string `gorm:"size:512;not null;uniqueIndex" json:"reference"`
	OriginName  string `gorm:"size:255;not null" json:"origin_name"`
	Size        int64  `gorm:"not null" json:"size"`
	MimeType    string `gorm:"size:100" json:"mime_type"`
	Hash        string `gorm:"size:64;index" json:"hash"`
	StoragePath string `gorm:"size:1000" json:"-"`
}

func (UploadedFile) TableName() string {
	return "uploaded_files"
}
