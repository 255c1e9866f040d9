package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf16"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

// TableBackend stores documents as single Azure Table entities. The kind is the
// partition key, the document key is the row key and the JSON document is kept
// in the Payload property.
type TableBackend struct {
	table *aztables.Client
}

// NewTableBackend creates a TableBackend from the given connection string.
func NewTableBackend(connStr, table string) (*TableBackend, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableBackend{table: svc.NewClient(table)}, nil
}

// maxPayloadBytes is the Azure Table limit for one string property, which is
// stored as UTF-16.
const maxPayloadBytes = 64 * 1024

// ErrDocumentTooLarge is returned when a document does not fit in one table
// entity.
var ErrDocumentTooLarge = errors.New("document too large")

func checkPayloadSize(data []byte) error {
	size := 0
	for _, r := range string(data) {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		size += 2 * n
	}
	if size > maxPayloadBytes {
		return fmt.Errorf("%w: %d bytes encoded, table limit is %d", ErrDocumentTooLarge, size, maxPayloadBytes)
	}
	return nil
}

type documentEntity struct {
	aztables.Entity
	Payload string `json:"Payload"`
}

func encodeEntity(kind, key string, data []byte) ([]byte, error) {
	return sonic.Marshal(documentEntity{
		Entity:  aztables.Entity{PartitionKey: kind, RowKey: key},
		Payload: string(data),
	})
}

func decodeEntity(raw []byte) ([]byte, error) {
	var ent documentEntity
	if err := sonic.Unmarshal(raw, &ent); err != nil {
		return nil, err
	}
	return []byte(ent.Payload), nil
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

func (b *TableBackend) Load(ctx context.Context, kind, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrNotExist
	}
	resp, err := b.table.GetEntity(ctx, kind, key, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return decodeEntity(resp.Value)
}

func (b *TableBackend) Save(ctx context.Context, kind, key string, data []byte) error {
	if !validKey(key) {
		return fmt.Errorf("invalid key %q", key)
	}
	if err := checkPayloadSize(data); err != nil {
		return err
	}
	payload, err := encodeEntity(kind, key, data)
	if err != nil {
		return err
	}
	_, err = b.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}
