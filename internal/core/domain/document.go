package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

type DocumentType string

const (
	TypeBankStatement  DocumentType = "bank_statement"
	TypeSalarySlip     DocumentType = "salary_slip"
	TypeIDCard         DocumentType = "id_card"
	TypeIDAppendix     DocumentType = "id_appendix"
	TypePropertyRecord DocumentType = "property_record"

	// DefaultDocumentType is assigned when stored metadata cannot be decoded.
	DefaultDocumentType = TypeBankStatement
)

var documentTypes = []DocumentType{
	TypeBankStatement,
	TypeSalarySlip,
	TypeIDCard,
	TypeIDAppendix,
	TypePropertyRecord,
}

func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(documentTypes))
	copy(out, documentTypes)
	return out
}

func (t DocumentType) Valid() bool {
	for _, known := range documentTypes {
		if t == known {
			return true
		}
	}
	return false
}

const PlaceholderThumbnail = "/placeholder.svg"

type Document struct {
	ID              string          `json:"id"`
	FileName        string          `json:"fileName"`
	Description     string          `json:"description"`
	Type            DocumentType    `json:"type"`
	Thumbnail       string          `json:"thumbnail"`
	UploadDate      time.Time       `json:"uploadDate"`
	LastModified    time.Time       `json:"lastModified"`
	FolderID        string          `json:"folderId"`
	MimeType        string          `json:"mimeType,omitempty"`
	AnalysisResults *AnalysisResult `json:"analysisResults,omitempty"`
}

// EntryKind distinguishes folders from files in a remote listing.
type EntryKind string

const (
	EntryFolder EntryKind = "folder"
	EntryFile   EntryKind = "file"
)

// StorageEntry is one direct child of a remote folder.
type StorageEntry struct {
	ID           string
	Name         string
	Description  string
	MimeType     string
	Kind         EntryKind
	ThumbnailURL string
	IconURL      string
	CreatedTime  time.Time
	ModifiedTime time.Time
}

func (e StorageEntry) IsFolder() bool { return e.Kind == EntryFolder }

// UploadFile is one file queued for upload into a client folder.
type UploadFile struct {
	Name     string
	MimeType string
	Content  []byte
}

type packedMetadata struct {
	Description string       `json:"description"`
	Type        DocumentType `json:"type"`
}

// EncodeMetadata packs description and type into the single free-text
// description field the storage service exposes.
func EncodeMetadata(description string, docType DocumentType) string {
	raw, err := json.Marshal(packedMetadata{Description: description, Type: docType})
	if err != nil {
		return description
	}
	return string(raw)
}

// DecodeMetadata reverses EncodeMetadata. Anything that is not packed
// metadata is returned as plain description text with DefaultDocumentType.
func DecodeMetadata(raw string) (string, DocumentType) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return raw, DefaultDocumentType
	}
	descRaw, hasDesc := fields["description"]
	typeRaw, hasType := fields["type"]
	if !hasDesc || !hasType || bytes.Equal(bytes.TrimSpace(descRaw), []byte("null")) {
		return raw, DefaultDocumentType
	}

	var meta packedMetadata
	if err := json.Unmarshal(descRaw, &meta.Description); err != nil {
		return raw, DefaultDocumentType
	}
	if err := json.Unmarshal(typeRaw, &meta.Type); err != nil || !meta.Type.Valid() {
		return raw, DefaultDocumentType
	}
	return meta.Description, meta.Type
}

// MetadataPatch is the editable metadata of a stored file.
type MetadataPatch struct {
	Name        string
	Description string
}

// DocumentEdit carries the user-editable fields of a document. Nil fields
// are left unchanged.
type DocumentEdit struct {
	FileName    *string       `json:"fileName,omitempty"`
	Type        *DocumentType `json:"type,omitempty"`
	Description *string       `json:"description,omitempty"`
}

func (e DocumentEdit) ApplyTo(doc Document) Document {
	if e.FileName != nil {
		doc.FileName = strings.TrimSpace(*e.FileName)
	}
	if e.Type != nil {
		doc.Type = *e.Type
	}
	if e.Description != nil {
		doc.Description = *e.Description
	}
	return doc
}
