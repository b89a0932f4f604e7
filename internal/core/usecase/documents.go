package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

type DocumentDirectoryUseCase struct {
	gateway ports.StorageGateway
}

func NewDocumentDirectoryUseCase(gateway ports.StorageGateway) *DocumentDirectoryUseCase {
	return &DocumentDirectoryUseCase{gateway: gateway}
}

func (uc *DocumentDirectoryUseCase) ListDocuments(ctx context.Context, token, folderID string) ([]domain.Document, error) {
	entries, err := uc.gateway.ListFolderContents(ctx, token, folderID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDirectory, "list client documents", err)
	}

	docs := make([]domain.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.IsFolder() {
			continue
		}
		docs = append(docs, documentFromEntry(entry, folderID))
	}
	return docs, nil
}

func documentFromEntry(entry domain.StorageEntry, folderID string) domain.Document {
	description, docType := domain.DecodeMetadata(entry.Description)

	thumbnail := entry.ThumbnailURL
	if thumbnail == "" {
		thumbnail = entry.IconURL
	}
	if thumbnail == "" {
		thumbnail = domain.PlaceholderThumbnail
	}

	return domain.Document{
		ID:           entry.ID,
		FileName:     entry.Name,
		Description:  description,
		Type:         docType,
		Thumbnail:    thumbnail,
		UploadDate:   entry.CreatedTime,
		LastModified: entry.ModifiedTime,
		FolderID:     folderID,
		MimeType:     entry.MimeType,
	}
}

// UpdateDocument pushes the editable fields of doc to the remote file's
// metadata. File content is never touched.
func (uc *DocumentDirectoryUseCase) UpdateDocument(ctx context.Context, token string, doc domain.Document) error {
	if doc.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "update document", errors.New("document id is required"))
	}
	if !doc.Type.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "update document", fmt.Errorf("unknown document type %q", doc.Type))
	}

	patch := domain.MetadataPatch{
		Name:        strings.TrimSpace(doc.FileName),
		Description: domain.EncodeMetadata(doc.Description, doc.Type),
	}
	if err := uc.gateway.UpdateMetadata(ctx, token, doc.ID, patch); err != nil {
		return domain.WrapError(domain.ErrUpdateFailed, "update document metadata", err)
	}
	return nil
}

// UploadDocuments uploads files one after another. It stops at the first
// failure; files uploaded before it stay in place.
func (uc *DocumentDirectoryUseCase) UploadDocuments(ctx context.Context, token, folderID string, files []domain.UploadFile) (int, error) {
	if folderID == "" {
		return 0, domain.WrapError(domain.ErrInvalidInput, "upload documents", errors.New("folder id is required"))
	}

	uploaded := 0
	for _, file := range files {
		if _, err := uc.gateway.UploadFile(ctx, token, folderID, file); err != nil {
			return uploaded, domain.WrapError(domain.ErrUploadFailed, fmt.Sprintf("upload %q", file.Name), err)
		}
		uploaded++
	}
	return uploaded, nil
}
