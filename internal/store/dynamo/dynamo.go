// Package dynamo keeps users in a DynamoDB table keyed by the string "id".
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hanpama/kanbangraph/internal/id"
	"github.com/hanpama/kanbangraph/internal/kanban"
)

// maxBatchGet is the BatchGetItem key limit per request.
const maxBatchGet = 100

// Client is the subset of *dynamodb.Client the store calls.
type Client interface {
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

type Config struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// NewClient builds a client from the default AWS credential chain. Endpoint
// overrides the service URL, for DynamoDB Local.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

type userItem struct {
	ID    string `dynamodbav:"id"`
	Name  string `dynamodbav:"name"`
	Email string `dynamodbav:"email"`
}

func (it userItem) user() (kanban.User, error) {
	uid, err := id.Parse[id.User](it.ID)
	if err != nil {
		return kanban.User{}, fmt.Errorf("stored user %q: %w", it.ID, err)
	}
	return kanban.User{ID: uid, Name: it.Name, Email: it.Email}, nil
}

var (
	_ kanban.UserStore  = (*Users)(nil)
	_ kanban.UserWriter = (*Users)(nil)
)

// Users implements kanban.UserStore over one table.
type Users struct {
	client   Client
	table    string
	attempts int
	backoff  time.Duration
}

func NewUsers(client Client, table string) *Users {
	return &Users{client: client, table: table, attempts: 5, backoff: 50 * time.Millisecond}
}

// UsersByIDs reads ids in chunks of 100, retrying unprocessed keys.
func (u *Users) UsersByIDs(ctx context.Context, ids []kanban.UserID) (map[kanban.UserID]kanban.User, error) {
	out := make(map[kanban.UserID]kanban.User, len(ids))
	seen := make(map[kanban.UserID]bool, len(ids))
	var keys []map[string]types.AttributeValue
	for _, uid := range ids {
		if seen[uid] {
			continue
		}
		seen[uid] = true
		keys = append(keys, map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: uid.String()},
		})
	}
	for start := 0; start < len(keys); start += maxBatchGet {
		end := min(start+maxBatchGet, len(keys))
		if err := u.batchGet(ctx, keys[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (u *Users) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, out map[kanban.UserID]kanban.User) error {
	pending := map[string]types.KeysAndAttributes{u.table: {Keys: keys}}
	wait := u.backoff
	for attempt := 0; len(pending) > 0; attempt++ {
		if attempt == u.attempts {
			return fmt.Errorf("batch get users: %d keys still unprocessed after %d attempts", len(pending[u.table].Keys), attempt)
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
		res, err := u.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
		if err != nil {
			return fmt.Errorf("batch get users: %w", err)
		}
		for _, item := range res.Responses[u.table] {
			var it userItem
			if err := attributevalue.UnmarshalMap(item, &it); err != nil {
				return fmt.Errorf("unmarshal user: %w", err)
			}
			usr, err := it.user()
			if err != nil {
				return err
			}
			out[usr.ID] = usr
		}
		pending = res.UnprocessedKeys
	}
	return nil
}

// AllUsers scans the table and orders the result by identifier.
func (u *Users) AllUsers(ctx context.Context) ([]kanban.User, error) {
	var out []kanban.User
	p := dynamodb.NewScanPaginator(u.client, &dynamodb.ScanInput{TableName: aws.String(u.table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan users: %w", err)
		}
		var items []userItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal users: %w", err)
		}
		for _, it := range items {
			usr, err := it.user()
			if err != nil {
				return nil, err
			}
			out = append(out, usr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

func (u *Users) PutUser(ctx context.Context, usr kanban.User) error {
	if err := usr.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(userItem{ID: usr.ID.String(), Name: usr.Name, Email: usr.Email})
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if _, err := u.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(u.table), Item: item}); err != nil {
		return fmt.Errorf("put user %s: %w", usr.ID, err)
	}
	return nil
}

// CreateTable creates the users table with on-demand billing. An existing
// table is left untouched.
func (u *Users) CreateTable(ctx context.Context) error {
	_, err := u.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(u.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create table %s: %w", u.table, err)
	}
	return nil
}
