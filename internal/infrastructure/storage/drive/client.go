package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/broker-docs/internal/core/domain"
	"github.com/kirillkom/broker-docs/internal/infrastructure/resilience"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	listFields  = "nextPageToken,files(id,name,description,mimeType,thumbnailLink,iconLink,createdTime,modifiedTime)"
	entryFields = "id,name,description,mimeType,thumbnailLink,iconLink,createdTime,modifiedTime"
)

type Options struct {
	APIURL      string
	UploadURL   string
	UserInfoURL string
	PageSize    int
	Timeout     time.Duration
	Executor    *resilience.Executor
}

// Client talks to the Google Drive v3 REST API on behalf of the holder of
// the access token passed to each call.
type Client struct {
	apiURL      string
	uploadURL   string
	userInfoURL string
	pageSize    int
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(options Options) *Client {
	apiURL := options.APIURL
	if apiURL == "" {
		apiURL = "https://www.googleapis.com/drive/v3"
	}
	uploadURL := options.UploadURL
	if uploadURL == "" {
		uploadURL = "https://www.googleapis.com/upload/drive/v3"
	}
	userInfoURL := options.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	}
	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiURL:      strings.TrimRight(apiURL, "/"),
		uploadURL:   strings.TrimRight(uploadURL, "/"),
		userInfoURL: userInfoURL,
		pageSize:    pageSize,
		httpClient:  &http.Client{Timeout: timeout},
		executor:    options.Executor,
	}
}

type driveFile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	MimeType      string    `json:"mimeType"`
	ThumbnailLink string    `json:"thumbnailLink"`
	IconLink      string    `json:"iconLink"`
	CreatedTime   time.Time `json:"createdTime"`
	ModifiedTime  time.Time `json:"modifiedTime"`
}

func (f driveFile) entry() domain.StorageEntry {
	kind := domain.EntryFile
	if f.MimeType == folderMimeType {
		kind = domain.EntryFolder
	}
	return domain.StorageEntry{
		ID:           f.ID,
		Name:         f.Name,
		Description:  f.Description,
		MimeType:     f.MimeType,
		Kind:         kind,
		ThumbnailURL: f.ThumbnailLink,
		IconURL:      f.IconLink,
		CreatedTime:  f.CreatedTime,
		ModifiedTime: f.ModifiedTime,
	}
}

type fileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveFile `json:"files"`
}

func (c *Client) FindFolderByName(ctx context.Context, token, name string) (*domain.StorageEntry, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)
	return c.findFirst(ctx, token, "find_folder", query)
}

func (c *Client) FindFileByName(ctx context.Context, token, parentID, name string) (*domain.StorageEntry, error) {
	if parentID == "" {
		return nil, nil
	}
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType!='%s' and trashed=false",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)
	return c.findFirst(ctx, token, "find_file", query)
}

func (c *Client) findFirst(ctx context.Context, token, operation, query string) (*domain.StorageEntry, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", listFields)
	params.Set("pageSize", "1")

	var out fileList
	if err := c.getJSON(ctx, token, operation, c.apiURL+"/files?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out.Files) == 0 {
		return nil, nil
	}
	entry := out.Files[0].entry()
	return &entry, nil
}

func (c *Client) CreateFolder(ctx context.Context, token, name, parentID string) (*domain.StorageEntry, error) {
	payload := map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
	}
	if parentID != "" {
		payload["parents"] = []string{parentID}
	}

	var out driveFile
	if err := c.sendJSON(ctx, token, "create_folder", http.MethodPost, c.apiURL+"/files?fields="+entryFields, payload, &out); err != nil {
		return nil, err
	}
	entry := out.entry()
	return &entry, nil
}

// ListFolderContents returns the non-trashed direct children of folderID,
// following page tokens until the listing is complete.
func (c *Client) ListFolderContents(ctx context.Context, token, folderID string) ([]domain.StorageEntry, error) {
	if strings.TrimSpace(folderID) == "" {
		return []domain.StorageEntry{}, nil
	}
	params := url.Values{}
	params.Set("q", fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(folderID)))
	params.Set("fields", listFields)
	params.Set("orderBy", "createdTime")
	params.Set("pageSize", strconv.Itoa(c.pageSize))

	entries := []domain.StorageEntry{}
	for {
		var out fileList
		if err := c.getJSON(ctx, token, "list_folder", c.apiURL+"/files?"+params.Encode(), &out); err != nil {
			return nil, err
		}
		for _, f := range out.Files {
			entries = append(entries, f.entry())
		}
		if out.NextPageToken == "" {
			return entries, nil
		}
		params.Set("pageToken", out.NextPageToken)
	}
}

// UploadFile opens a resumable upload session and sends the content in a
// single PUT.
func (c *Client) UploadFile(ctx context.Context, token, folderID string, file domain.UploadFile) (*domain.StorageEntry, error) {
	mimeType := file.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	metadata := map[string]any{
		"name":     file.Name,
		"mimeType": mimeType,
		"parents":  []string{folderID},
	}

	location, err := c.startResumableUpload(ctx, token, metadata, mimeType, len(file.Content))
	if err != nil {
		return nil, domain.WrapError(domain.ErrUploadFailed, "initiate upload", err)
	}

	var out driveFile
	if err := c.sendBytes(ctx, token, "upload_content", http.MethodPut, location, mimeType, file.Content, &out); err != nil {
		return nil, domain.WrapError(domain.ErrUploadFailed, "transfer upload content", err)
	}
	entry := out.entry()
	return &entry, nil
}

func (c *Client) startResumableUpload(ctx context.Context, token string, metadata map[string]any, mimeType string, size int) (string, error) {
	headers := http.Header{}
	headers.Set("X-Upload-Content-Type", mimeType)
	headers.Set("X-Upload-Content-Length", strconv.Itoa(size))

	endpoint := c.uploadURL + "/files?uploadType=resumable&fields=" + entryFields
	respHeaders, err := c.sendJSONWithHeaders(ctx, token, "upload_session", http.MethodPost, endpoint, metadata, headers, nil)
	if err != nil {
		return "", err
	}
	location := respHeaders.Get("Location")
	if location == "" {
		return "", errors.New("upload session response has no location")
	}
	return location, nil
}

func (c *Client) UpdateFileContent(ctx context.Context, token, fileID, mimeType string, content []byte) error {
	endpoint := c.uploadURL + "/files/" + url.PathEscape(fileID) + "?uploadType=media"
	return c.sendBytes(ctx, token, "update_content", http.MethodPatch, endpoint, mimeType, content, nil)
}

func (c *Client) UpdateMetadata(ctx context.Context, token, fileID string, patch domain.MetadataPatch) error {
	payload := map[string]any{"description": patch.Description}
	if patch.Name != "" {
		payload["name"] = patch.Name
	}
	endpoint := c.apiURL + "/files/" + url.PathEscape(fileID) + "?fields=id"
	return c.sendJSON(ctx, token, "update_metadata", http.MethodPatch, endpoint, payload, nil)
}

func (c *Client) DownloadFile(ctx context.Context, token, fileID string) ([]byte, error) {
	var raw []byte
	endpoint := c.apiURL + "/files/" + url.PathEscape(fileID) + "?alt=media"
	if err := c.getJSON(ctx, token, "download", endpoint, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) SetPermissions(ctx context.Context, token, fileID, granteeEmail string) error {
	payload := map[string]string{
		"role":         "writer",
		"type":         "user",
		"emailAddress": granteeEmail,
	}
	endpoint := c.apiURL + "/files/" + url.PathEscape(fileID) + "/permissions?sendNotificationEmail=false"
	return c.sendJSON(ctx, token, "set_permissions", http.MethodPost, endpoint, payload, nil)
}

// UserEmail resolves the email address of the token's owner.
func (c *Client) UserEmail(ctx context.Context, token string) (string, error) {
	var out struct {
		Email string `json:"email"`
	}
	if err := c.getJSON(ctx, token, "userinfo", c.userInfoURL, &out); err != nil {
		return "", err
	}
	if out.Email == "" {
		return "", errors.New("userinfo response has no email")
	}
	return out.Email, nil
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
