package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/core/ports"
)

type ClientDirectoryUseCase struct {
	gateway ports.StorageGateway
	newID   func() string
}

func NewClientDirectoryUseCase(gateway ports.StorageGateway) *ClientDirectoryUseCase {
	return &ClientDirectoryUseCase{
		gateway: gateway,
		newID:   uuid.NewString,
	}
}

// EnsureRootFolder returns the id of the named top-level folder, creating it
// only when a search finds none.
func (uc *ClientDirectoryUseCase) EnsureRootFolder(ctx context.Context, token, name string) (string, error) {
	existing, err := uc.gateway.FindFolderByName(ctx, token, name)
	if err != nil {
		return "", domain.WrapError(domain.ErrDirectory, "search root folder", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	created, err := uc.gateway.CreateFolder(ctx, token, name, "")
	if err != nil {
		return "", domain.WrapError(domain.ErrDirectory, "create root folder", err)
	}
	slog.Info("root_folder_created", "folder_id", created.ID, "name", name)
	return created.ID, nil
}

// ListClients maps every subfolder of the root to a client. Document counts
// cost one extra listing per client.
func (uc *ClientDirectoryUseCase) ListClients(ctx context.Context, token, rootFolderID string) ([]domain.Client, error) {
	entries, err := uc.gateway.ListFolderContents(ctx, token, rootFolderID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDirectory, "list root folder", err)
	}

	clients := make([]domain.Client, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsFolder() {
			continue
		}
		count, err := uc.countDocuments(ctx, token, entry.ID)
		if err != nil {
			return nil, domain.WrapError(domain.ErrDirectory, fmt.Sprintf("count documents of %q", entry.Name), err)
		}
		clients = append(clients, domain.Client{
			ID:            uc.newID(),
			Name:          entry.Name,
			DocumentCount: count,
			FolderID:      entry.ID,
		})
	}
	return clients, nil
}

func (uc *ClientDirectoryUseCase) countDocuments(ctx context.Context, token, folderID string) (int, error) {
	children, err := uc.gateway.ListFolderContents(ctx, token, folderID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, child := range children {
		if !child.IsFolder() {
			count++
		}
	}
	return count, nil
}

// CreateClient creates the client's folder under the root. When granteeEmail
// is set, writer access is granted on a best-effort basis.
func (uc *ClientDirectoryUseCase) CreateClient(ctx context.Context, token, rootFolderID, name, granteeEmail string) (domain.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Client{}, domain.WrapError(domain.ErrInvalidInput, "create client", errors.New("client name is required"))
	}
	if rootFolderID == "" {
		return domain.Client{}, domain.WrapError(domain.ErrInvalidInput, "create client", errors.New("root folder is not set"))
	}

	folder, err := uc.gateway.CreateFolder(ctx, token, name, rootFolderID)
	if err != nil {
		return domain.Client{}, domain.WrapError(domain.ErrDirectory, "create client folder", err)
	}

	if granteeEmail != "" {
		if err := uc.gateway.SetPermissions(ctx, token, folder.ID, granteeEmail); err != nil {
			slog.Warn("permission_grant_failed", "folder_id", folder.ID, "grantee", granteeEmail, "error", err)
		}
	}

	return domain.Client{
		ID:            uc.newID(),
		Name:          name,
		DocumentCount: 0,
		FolderID:      folder.ID,
	}, nil
}
