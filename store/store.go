package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key attribute names of the table and its secondary index.
const (
	AttrPK     = "pk"
	AttrSK     = "sk"
	AttrGSI1PK = "gsi1pk"
	AttrGSI1SK = "gsi1sk"
)

// Item is a raw DynamoDB record.
type Item = map[string]types.AttributeValue

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
// *dynamodb.Client satisfies it; tests inject a fake (see storetest).
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Store provides single-table DynamoDB operations for the persistence core.
type Store struct {
	client DynamoDBAPI
	config Config
}

// New creates a new Store instance.
func New(client DynamoDBAPI, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// TableName returns the configured table name.
func (s *Store) TableName() string { return s.config.TableName }

// key builds the primary key attribute map for a record.
func key(pk, sk string) Item {
	return Item{
		AttrPK: &types.AttributeValueMemberS{Value: pk},
		AttrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// Put writes a record. The item must already carry its pk/sk attributes
// (and gsi1pk/gsi1sk when the record is projected into the index). With
// uniqueOnCreate set, the write fails with ErrAlreadyExists if a record
// with the same primary key exists. This is an optimistic existence check,
// not a lock.
func (s *Store) Put(ctx context.Context, item Item, uniqueOnCreate bool) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      item,
	}
	if uniqueOnCreate {
		input.ConditionExpression = aws.String("attribute_not_exists(pk)")
	}

	_, err := s.client.PutItem(ctx, input)

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrAlreadyExists
	}
	return err
}

// Get retrieves a record by primary key, returning ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, pk, sk string) (Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key(pk, sk),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return result.Item, nil
}

// QueryOptions controls ordering and result size of range reads.
type QueryOptions struct {
	// Descending reverses the sort-key order (newest-first for
	// timestamp-encoded sort keys).
	Descending bool

	// Limit caps the number of returned items (0 = no limit).
	Limit int32
}

// QueryPrefix returns the records in one partition whose sort key starts
// with skPrefix, ordered by sort key. An empty prefix matches the whole
// partition.
func (s *Store) QueryPrefix(ctx context.Context, pk, skPrefix string, opts QueryOptions) ([]Item, error) {
	return s.query(ctx, "", AttrPK, pk, AttrSK, skPrefix, opts)
}

// QueryIndex is QueryPrefix through the secondary index.
func (s *Store) QueryIndex(ctx context.Context, gsi1pk, gsi1skPrefix string, opts QueryOptions) ([]Item, error) {
	return s.query(ctx, s.config.IndexName, AttrGSI1PK, gsi1pk, AttrGSI1SK, gsi1skPrefix, opts)
}

func (s *Store) query(ctx context.Context, index, pkAttr, pkVal, skAttr, skPrefix string, opts QueryOptions) ([]Item, error) {
	keyCond := pkAttr + " = :pk"
	values := Item{
		":pk": &types.AttributeValueMemberS{Value: pkVal},
	}
	if skPrefix != "" {
		keyCond += fmt.Sprintf(" AND begins_with(%s, :prefix)", skAttr)
		values[":prefix"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.config.TableName),
		KeyConditionExpression:    aws.String(keyCond),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(!opts.Descending),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}
	if opts.Limit > 0 {
		input.Limit = aws.Int32(opts.Limit)
	}

	// Paginate; DynamoDB's Limit is per page, so re-check the cap here.
	var items []Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if opts.Limit > 0 && len(items) >= int(opts.Limit) {
			return items[:opts.Limit], nil
		}
	}

	return items, nil
}

// Update applies per-field operations to an existing record and returns the
// post-update record. Fields not mentioned in ops (or mapped to the zero
// FieldOp) are left untouched. Returns ErrNotFound if the record doesn't
// exist; Update never creates records.
func (s *Store) Update(ctx context.Context, pk, sk string, ops map[string]FieldOp) (Item, error) {
	var setClauses, removeClauses []string
	names := map[string]string{}
	values := Item{}

	// Deterministic placeholder numbering keeps expressions testable.
	fields := make([]string, 0, len(ops))
	for f := range ops {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	i := 0
	for _, field := range fields {
		op := ops[field]
		if op.err != nil {
			return nil, fmt.Errorf("field %q: %w", field, op.err)
		}
		if op.kind == opUnchanged {
			continue
		}
		nameKey := fmt.Sprintf("#f%d", i)
		names[nameKey] = field
		switch op.kind {
		case opSet:
			valueKey := fmt.Sprintf(":v%d", i)
			values[valueKey] = op.value
			setClauses = append(setClauses, nameKey+" = "+valueKey)
		case opRemove:
			removeClauses = append(removeClauses, nameKey)
		}
		i++
	}

	if len(setClauses) == 0 && len(removeClauses) == 0 {
		return s.Get(ctx, pk, sk)
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.config.TableName),
		Key:                      key(pk, sk),
		UpdateExpression:         aws.String(buildUpdateExpression(setClauses, removeClauses)),
		ConditionExpression:      aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames: names,
		ReturnValues:             types.ReturnValueAllNew,
	}
	if len(values) > 0 {
		input.ExpressionAttributeValues = values
	}

	result, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return result.Attributes, nil
}

// Delete removes a record by primary key. Deleting a non-existent key is
// not an error.
func (s *Store) Delete(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.config.TableName),
		Key:       key(pk, sk),
	})
	return err
}

// buildUpdateExpression assembles the SET/REMOVE clauses of an update.
func buildUpdateExpression(setClauses, removeClauses []string) string {
	expr := ""
	if len(setClauses) > 0 {
		expr = "SET " + joinStrings(setClauses, ", ")
	}
	if len(removeClauses) > 0 {
		if expr != "" {
			expr += " "
		}
		expr += "REMOVE " + joinStrings(removeClauses, ", ")
	}
	return expr
}

// joinStrings joins strings with a separator (avoiding strings package import).
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
