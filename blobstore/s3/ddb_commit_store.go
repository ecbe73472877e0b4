package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nsvector/hybridengine/blobstore"
)

// DDBCommitStore implements blobstore.CommitStore: blobs go to S3, and the
// "which generation of this namespace's snapshot is current" pointer is
// flipped with a DynamoDB conditional write, giving atomic compare-and-swap
// semantics S3 alone doesn't have.
//
// Table schema: partition key "namespace" (string), attribute "generation"
// (string).
type DDBCommitStore struct {
	*Store
	ddb       DDBClient
	tableName string
}

// DDBClient is the subset of the DynamoDB client the commit store needs.
type DDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// NewDDBCommitStore creates an S3+DynamoDB commit store over an existing
// S3-backed Store.
func NewDDBCommitStore(store *Store, ddb DDBClient, tableName string) *DDBCommitStore {
	return &DDBCommitStore{Store: store, ddb: ddb, tableName: tableName}
}

func (s *DDBCommitStore) CurrentGeneration(ctx context.Context, namespace string) (string, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"namespace": &types.AttributeValueMemberS{Value: namespace},
		},
	})
	if err != nil {
		return "", fmt.Errorf("blobstore: ddb get current generation: %w", err)
	}
	if out.Item == nil {
		return "", nil
	}
	gen, ok := out.Item["generation"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("blobstore: malformed generation item")
	}
	return gen.Value, nil
}

func (s *DDBCommitStore) CommitGeneration(ctx context.Context, namespace, generation, expectedPrev string) error {
	item := map[string]types.AttributeValue{
		"namespace":  &types.AttributeValueMemberS{Value: namespace},
		"generation": &types.AttributeValueMemberS{Value: generation},
	}

	var condition string
	values := map[string]types.AttributeValue{}
	if expectedPrev == "" {
		condition = "attribute_not_exists(generation)"
	} else {
		condition = "generation = :prev"
		values[":prev"] = &types.AttributeValueMemberS{Value: expectedPrev}
	}

	input := &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String(condition),
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	_, err := s.ddb.PutItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return blobstore.ErrConcurrentModification
		}
		return fmt.Errorf("blobstore: ddb commit generation: %w", err)
	}
	return nil
}

var _ blobstore.CommitStore = (*DDBCommitStore)(nil)
