package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// AzureConfig holds the Azure Storage settings.
type AzureConfig struct {
	ConnectionString string
	Container        string
	Table            string
}

// blobStore holds transcript and query log documents.
type blobStore interface {
	put(ctx context.Context, path string, data []byte) error
	get(ctx context.Context, path string) ([]byte, error)
	remove(ctx context.Context, path string) error
	ping(ctx context.Context) error
}

// indexTable holds one summary row per (company, chat id).
type indexTable interface {
	upsert(ctx context.Context, company, userID string, s domain.ChatSummary) error
	list(ctx context.Context, company string) ([]domain.ChatSummary, error)
	remove(ctx context.Context, company, chatID string) error
}

// AzureStore implements ChatStore on Azure Blob and Table storage.
// Transcripts live in blobs; the table is the per-company index.
type AzureStore struct {
	blobs blobStore
	index indexTable
}

// NewAzure connects to Azure Storage, creating the container and table if needed.
func NewAzure(ctx context.Context, cfg AzureConfig) (*AzureStore, error) {
	if cfg.ConnectionString == "" {
		return nil, errors.New("azure storage connection string is empty")
	}

	bc, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	if _, err := bc.CreateContainer(ctx, cfg.Container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("create blob container %s: %w", cfg.Container, err)
		}
		slog.Info("Blob container already exists", "container", cfg.Container)
	} else {
		slog.Info("Created blob container", "container", cfg.Container)
	}

	svc, err := aztables.NewServiceClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("create table service client: %w", err)
	}
	if _, err := svc.CreateTable(ctx, cfg.Table, nil); err != nil {
		var respErr *azcore.ResponseError
		if !errors.As(err, &respErr) || respErr.ErrorCode != "TableAlreadyExists" {
			return nil, fmt.Errorf("create table %s: %w", cfg.Table, err)
		}
	}
	slog.Info("Table ensured", "table", cfg.Table)

	return &AzureStore{
		blobs: &azureBlobs{client: bc, container: cfg.Container},
		index: &azureTable{client: svc.NewClient(cfg.Table)},
	}, nil
}

// SaveChat uploads the transcript blob, then upserts the index row.
func (s *AzureStore) SaveChat(ctx context.Context, t domain.Transcript) error {
	if err := validate(t); err != nil {
		return err
	}
	t.MessageCount = len(t.Messages)
	sum := Summarize(t)

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := s.blobs.put(ctx, sum.BlobPath, data); err != nil {
		return fmt.Errorf("upload transcript: %w", err)
	}
	if err := s.index.upsert(ctx, PartitionKey(t.Company), t.UserID, sum); err != nil {
		return fmt.Errorf("upsert chat index: %w", err)
	}
	slog.Info("Chat saved", "chat_id", t.ChatID, "blob", sum.BlobPath, "messages", sum.MessageCount)
	return nil
}

// LoadChat downloads a transcript blob.
func (s *AzureStore) LoadChat(ctx context.Context, company, chatID string) (domain.Transcript, error) {
	data, err := s.blobs.get(ctx, BlobPath(company, chatID))
	if err != nil {
		return domain.Transcript{}, err
	}
	var t domain.Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return domain.Transcript{}, fmt.Errorf("decode transcript %s: %w", chatID, err)
	}
	return t, nil
}

// ListChats reads the company's index partition.
func (s *AzureStore) ListChats(ctx context.Context, company string, limit int) ([]domain.ChatSummary, error) {
	chats, err := s.index.list(ctx, PartitionKey(company))
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if chats == nil {
		chats = []domain.ChatSummary{}
	}
	return sortAndLimit(chats, limit), nil
}

// DeleteChat removes the transcript blob and its index row.
func (s *AzureStore) DeleteChat(ctx context.Context, company, chatID string) error {
	if err := s.blobs.remove(ctx, BlobPath(company, chatID)); err != nil {
		return err
	}
	if err := s.index.remove(ctx, PartitionKey(company), chatID); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete chat index: %w", err)
	}
	return nil
}

// LogQuery writes the entry as its own blob under logs/.
func (s *AzureStore) LogQuery(ctx context.Context, e domain.QueryLogEntry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode query log: %w", err)
	}
	path := QueryLogPath(e)
	if err := s.blobs.put(ctx, path, data); err != nil {
		return fmt.Errorf("upload query log: %w", err)
	}
	slog.Debug("Query logged", "blob", path)
	return nil
}

// Ping checks the blob container is reachable.
func (s *AzureStore) Ping(ctx context.Context) error {
	return s.blobs.ping(ctx)
}

// Close is a no-op; the SDK clients hold no long-lived resources.
func (s *AzureStore) Close() error { return nil }

type azureBlobs struct {
	client    *azblob.Client
	container string
}

func (b *azureBlobs) put(ctx context.Context, path string, data []byte) error {
	_, err := b.client.UploadBuffer(ctx, b.container, path, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	})
	return err
}

func (b *azureBlobs) get(ctx context.Context, path string) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (b *azureBlobs) remove(ctx context.Context, path string) error {
	if _, err := b.client.DeleteBlob(ctx, b.container, path, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (b *azureBlobs) ping(ctx context.Context) error {
	_, err := b.client.ServiceClient().NewContainerClient(b.container).GetProperties(ctx, nil)
	return err
}

type azureTable struct {
	client *aztables.Client
}

const listSelect = "RowKey,ChatTitle,MessageCount,CreatedAt,UpdatedAt,SearchMode,LastMessage,BlobPath"

func (t *azureTable) upsert(ctx context.Context, company, userID string, s domain.ChatSummary) error {
	entity := aztables.EDMEntity{
		Entity: aztables.Entity{PartitionKey: company, RowKey: s.ChatID},
		Properties: map[string]any{
			"UserID":       userID,
			"ChatTitle":    s.Title,
			"MessageCount": int32(s.MessageCount),
			"CreatedAt":    s.CreatedAt.UTC().Format(time.RFC3339Nano),
			"UpdatedAt":    s.UpdatedAt.UTC().Format(time.RFC3339Nano),
			"SearchMode":   string(s.SearchMode),
			"LastMessage":  s.LastMessage,
			"BlobPath":     s.BlobPath,
		},
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	_, err = t.client.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (t *azureTable) list(ctx context.Context, company string) ([]domain.ChatSummary, error) {
	filter := fmt.Sprintf("PartitionKey eq '%s'", strings.ReplaceAll(company, "'", "''"))
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{
		Filter: &filter,
		Select: to.Ptr(listSelect),
	})

	var chats []domain.ChatSummary
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Entities {
			var e aztables.EDMEntity
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, fmt.Errorf("decode entity: %w", err)
			}
			chats = append(chats, summaryFromEntity(e))
		}
	}
	return chats, nil
}

func (t *azureTable) remove(ctx context.Context, company, chatID string) error {
	if _, err := t.client.DeleteEntity(ctx, company, chatID, nil); err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func summaryFromEntity(e aztables.EDMEntity) domain.ChatSummary {
	str := func(k string) string {
		s, _ := e.Properties[k].(string)
		return s
	}
	title := str("ChatTitle")
	if title == "" {
		title = "Untitled Chat"
	}
	return domain.ChatSummary{
		ChatID:       e.RowKey,
		Title:        title,
		MessageCount: entityInt(e.Properties["MessageCount"]),
		SearchMode:   domain.ParseSearchMode(str("SearchMode")),
		LastMessage:  str("LastMessage"),
		BlobPath:     str("BlobPath"),
		CreatedAt:    parseTime(str("CreatedAt")),
		UpdatedAt:    parseTime(str("UpdatedAt")),
	}
}

func entityInt(v any) int {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case aztables.EDMInt64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
