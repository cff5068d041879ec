package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"scoutgw/internal/config"
	"scoutgw/internal/domain"
)

var _ domain.ArchiveSink = (*AzureSink)(nil)

// AzureSink writes audit batches to an Azure Blob Storage container using
// shared-key authentication.
type AzureSink struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureSink builds an Azure Blob sink from the account URL and shared
// key in config. The account name is derived from the URL by the SDK.
func NewAzureSink(cfg *config.Config) (*AzureSink, error) {
	if cfg.AzureAccountURL == "" || cfg.AzureAccountKey == "" {
		return nil, fmt.Errorf("azblob archive requires AZURE_BLOB_ACCOUNT_URL and AZURE_BLOB_ACCOUNT_KEY")
	}

	account := accountFromURL(cfg.AzureAccountURL)
	if account == "" {
		return nil, fmt.Errorf("cannot derive account name from %q", cfg.AzureAccountURL)
	}

	cred, err := azblob.NewSharedKeyCredential(account, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(cfg.AzureAccountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}

	return &AzureSink{
		client:    client,
		container: cfg.ArchiveBucket,
		prefix:    cfg.ArchivePrefix,
	}, nil
}

func (s *AzureSink) Put(ctx context.Context, key string, data []byte) error {
	blob := joinKey(s.prefix, key)
	_, err := s.client.UploadBuffer(ctx, s.container, blob, data, nil)
	if err != nil {
		return fmt.Errorf("upload %q to azure container %q: %w", blob, s.container, err)
	}
	return nil
}

func (s *AzureSink) Name() string { return "azblob" }

// accountFromURL pulls the storage account name out of a service URL like
// https://scoutaudit.blob.core.windows.net.
func accountFromURL(accountURL string) string {
	u, err := url.Parse(accountURL)
	if err != nil || u.Host == "" {
		return ""
	}
	account, _, _ := strings.Cut(u.Host, ".")
	return account
}
