package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
)

const (
	pkPrefixDevice = "DEVICE#"
	skPrefixKey    = "KEY#"
	defaultTTL     = 30 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps device state in a DynamoDB table so it survives Lambda
// cold starts. Items expire through the table's "ttl" attribute.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore creates a store on tableName. A non-positive ttl selects
// the 30-day default.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// devicePK returns the partition key for a device.
func devicePK(device string) string {
	return pkPrefixDevice + device
}

func keySK(key string) string {
	return skPrefixKey + key
}

func (c *DynamoStore) itemKey(device, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: devicePK(device)},
		"SK": &types.AttributeValueMemberS{Value: keySK(key)},
	}
}

// Get reads with strong consistency so a login is visible to the next request.
func (c *DynamoStore) Get(ctx context.Context, device, key string) (string, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.itemKey(device, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", errors.Wrap(err, "repository: Get get item")
	}
	if out == nil || len(out.Item) == 0 {
		return "", ErrNotFound
	}
	if expired(out.Item, c.now()) {
		return "", ErrNotFound
	}
	v, err := strAttr(out.Item, "value")
	if err != nil {
		return "", errors.Wrap(err, "repository: Get decode value")
	}
	return v, nil
}

func (c *DynamoStore) Put(ctx context.Context, device, key, value string) error {
	now := c.now().UTC()
	item := c.itemKey(device, key)
	item["value"] = &types.AttributeValueMemberS{Value: value}
	item["updatedAt"] = &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)}
	item["ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(c.ttl).Unix(), 10)}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	if err != nil {
		return errors.Wrap(err, "repository: Put")
	}
	return nil
}

func (c *DynamoStore) Delete(ctx context.Context, device, key string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.itemKey(device, key),
	})
	if err != nil {
		return errors.Wrap(err, "repository: Delete")
	}
	return nil
}

// expired reports items whose TTL passed but that DynamoDB has not swept yet.
func expired(item map[string]types.AttributeValue, now time.Time) bool {
	ttl, err := intAttr(item, "ttl")
	if err != nil {
		return false
	}
	return int64(ttl) <= now.Unix()
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", errors.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, errors.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, errors.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, errors.Wrapf(err, "repository: parse attribute %q", key)
	}
	return parsed, nil
}
