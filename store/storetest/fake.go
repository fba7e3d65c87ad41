// Package storetest provides an in-memory fake of the narrow DynamoDB client
// interface the store uses, so the persistence packages can be tested without
// real tables. It understands exactly the expression shapes the store emits:
// equality + begins_with key conditions, attribute_(not_)exists conditions,
// and SET/REMOVE update expressions.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is an in-memory stand-in for *dynamodb.Client. Safe for concurrent
// use. The zero value is not usable; create one with New.
type Client struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

// New creates an empty fake client.
func New() *Client {
	return &Client{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

// Len returns the number of stored records.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func recordKey(item map[string]types.AttributeValue) (string, error) {
	pk, ok := stringAttr(item, "pk")
	if !ok {
		return "", fmt.Errorf("storetest: item has no string pk")
	}
	sk, ok := stringAttr(item, "sk")
	if !ok {
		return "", fmt.Errorf("storetest: item has no string sk")
	}
	return pk + "\x00" + sk, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, bool) {
	v, ok := item[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", false
	}
	return v.Value, true
}

// PutItem stores a record, honoring an attribute_not_exists(pk) condition.
func (c *Client) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := recordKey(params.Item)
	if err != nil {
		return nil, err
	}

	if params.ConditionExpression != nil {
		if *params.ConditionExpression != "attribute_not_exists(pk)" {
			return nil, fmt.Errorf("storetest: unsupported put condition %q", *params.ConditionExpression)
		}
		if _, exists := c.items[k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}

	c.items[k] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// GetItem returns a record by primary key, or a nil Item when absent.
func (c *Client) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := recordKey(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := c.items[k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// DeleteItem removes a record. Missing records are not an error.
func (c *Client) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := recordKey(params.Key)
	if err != nil {
		return nil, err
	}
	delete(c.items, k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query evaluates an equality (+ optional begins_with) key condition against
// either the primary key attributes or the gsi1 projection.
func (c *Client) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cond, err := parseKeyCondition(params)
	if err != nil {
		return nil, err
	}

	type match struct {
		sortVal string
		item    map[string]types.AttributeValue
	}
	var matches []match
	for _, item := range c.items {
		pkVal, ok := stringAttr(item, cond.pkAttr)
		if !ok || pkVal != cond.pkValue {
			continue
		}
		skVal, ok := stringAttr(item, cond.skAttr)
		if !ok {
			// Records not projected into the index have no gsi1sk.
			continue
		}
		if cond.skPrefix != "" && !strings.HasPrefix(skVal, cond.skPrefix) {
			continue
		}
		matches = append(matches, match{sortVal: skVal, item: item})
	}

	ascending := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.Slice(matches, func(i, j int) bool {
		if ascending {
			return matches[i].sortVal < matches[j].sortVal
		}
		return matches[i].sortVal > matches[j].sortVal
	})

	if params.Limit != nil && len(matches) > int(*params.Limit) {
		matches = matches[:*params.Limit]
	}

	out := &dynamodb.QueryOutput{}
	for _, m := range matches {
		out.Items = append(out.Items, copyItem(m.item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// UpdateItem applies a SET/REMOVE update expression, honoring an
// attribute_exists(pk) condition and ALL_NEW return values.
func (c *Client) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k, err := recordKey(params.Key)
	if err != nil {
		return nil, err
	}

	item, exists := c.items[k]
	if params.ConditionExpression != nil {
		if *params.ConditionExpression != "attribute_exists(pk)" {
			return nil, fmt.Errorf("storetest: unsupported update condition %q", *params.ConditionExpression)
		}
		if !exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !exists {
		item = copyItem(params.Key)
	}

	if params.UpdateExpression == nil {
		return nil, fmt.Errorf("storetest: missing update expression")
	}
	if err := applyUpdateExpression(item, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	c.items[k] = item

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

type keyCondition struct {
	pkAttr   string
	pkValue  string
	skAttr   string
	skPrefix string
}

// parseKeyCondition handles "X = :pk" optionally followed by
// " AND begins_with(Y, :prefix)".
func parseKeyCondition(params *dynamodb.QueryInput) (keyCondition, error) {
	var cond keyCondition
	if params.KeyConditionExpression == nil {
		return cond, fmt.Errorf("storetest: missing key condition")
	}
	expr := *params.KeyConditionExpression

	clauses := strings.Split(expr, " AND ")
	if len(clauses) > 2 {
		return cond, fmt.Errorf("storetest: unsupported key condition %q", expr)
	}

	attr, placeholder, ok := strings.Cut(clauses[0], " = ")
	if !ok {
		return cond, fmt.Errorf("storetest: unsupported key condition %q", expr)
	}
	pkVal, ok := stringAttr(params.ExpressionAttributeValues, placeholder)
	if !ok {
		return cond, fmt.Errorf("storetest: missing value %q", placeholder)
	}
	cond.pkAttr = attr
	cond.pkValue = pkVal

	// Default sort attribute pairs with the partition attribute.
	switch cond.pkAttr {
	case "pk":
		cond.skAttr = "sk"
	case "gsi1pk":
		cond.skAttr = "gsi1sk"
	default:
		return cond, fmt.Errorf("storetest: unknown partition attribute %q", cond.pkAttr)
	}

	if len(clauses) == 2 {
		inner, found := strings.CutPrefix(clauses[1], "begins_with(")
		if !found {
			return cond, fmt.Errorf("storetest: unsupported sort condition %q", clauses[1])
		}
		inner = strings.TrimSuffix(inner, ")")
		attr, placeholder, ok := strings.Cut(inner, ", ")
		if !ok {
			return cond, fmt.Errorf("storetest: unsupported sort condition %q", clauses[1])
		}
		if attr != cond.skAttr {
			return cond, fmt.Errorf("storetest: sort attribute %q doesn't pair with %q", attr, cond.pkAttr)
		}
		prefix, ok := stringAttr(params.ExpressionAttributeValues, placeholder)
		if !ok {
			return cond, fmt.Errorf("storetest: missing value %q", placeholder)
		}
		cond.skPrefix = prefix
	}

	return cond, nil
}

// applyUpdateExpression handles "SET #a = :v, ..." and "REMOVE #a, ..."
// sections, in that order, as the store emits them.
func applyUpdateExpression(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	rest := expr
	if setPart, ok := strings.CutPrefix(rest, "SET "); ok {
		setClauses := setPart
		if idx := strings.Index(setPart, " REMOVE "); idx >= 0 {
			setClauses = setPart[:idx]
			rest = setPart[idx+1:]
		} else {
			rest = ""
		}
		for _, clause := range strings.Split(setClauses, ", ") {
			nameKey, valueKey, ok := strings.Cut(clause, " = ")
			if !ok {
				return fmt.Errorf("storetest: bad SET clause %q", clause)
			}
			attr, ok := names[nameKey]
			if !ok {
				return fmt.Errorf("storetest: unknown name %q", nameKey)
			}
			value, ok := values[valueKey]
			if !ok {
				return fmt.Errorf("storetest: unknown value %q", valueKey)
			}
			item[attr] = copyAttr(value)
		}
	}
	if removePart, ok := strings.CutPrefix(rest, "REMOVE "); ok {
		for _, nameKey := range strings.Split(removePart, ", ") {
			attr, ok := names[nameKey]
			if !ok {
				return fmt.Errorf("storetest: unknown name %q", nameKey)
			}
			delete(item, attr)
		}
	} else if rest != "" {
		return fmt.Errorf("storetest: unsupported update expression %q", expr)
	}
	return nil
}

// copyItem deep-copies a record so stored state never aliases caller maps.
func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyAttr(v)
	}
	return out
}

func copyAttr(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return &types.AttributeValueMemberS{Value: v.Value}
	case *types.AttributeValueMemberN:
		return &types.AttributeValueMemberN{Value: v.Value}
	case *types.AttributeValueMemberBOOL:
		return &types.AttributeValueMemberBOOL{Value: v.Value}
	case *types.AttributeValueMemberNULL:
		return &types.AttributeValueMemberNULL{Value: v.Value}
	case *types.AttributeValueMemberB:
		b := make([]byte, len(v.Value))
		copy(b, v.Value)
		return &types.AttributeValueMemberB{Value: b}
	case *types.AttributeValueMemberSS:
		return &types.AttributeValueMemberSS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberNS:
		return &types.AttributeValueMemberNS{Value: append([]string(nil), v.Value...)}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, e := range v.Value {
			l[i] = copyAttr(e)
		}
		return &types.AttributeValueMemberL{Value: l}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(v.Value)}
	default:
		return av
	}
}
