package dynamodb

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory table that understands the condition, key and update
// expressions produced by the expression builder for this package.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	failOn   map[string]error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		items:  make(map[string]map[string]types.AttributeValue),
		failOn: make(map[string]error),
	}
}

var _ API = (*fakeDynamo)(nil)

func itemKey(key map[string]types.AttributeValue) string {
	return str(key["PK"]) + "|" + str(key["SK"])
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["GetItem"]; err != nil {
		return nil, err
	}
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["PutItem"]; err != nil {
		return nil, err
	}
	key := itemKey(params.Item)
	if params.ConditionExpression != nil &&
		!evaluate(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, f.items[key]) {
		return nil, conditionFailed()
	}
	f.items[key] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["DeleteItem"]; err != nil {
		return nil, err
	}
	key := itemKey(params.Key)
	if params.ConditionExpression != nil &&
		!evaluate(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, f.items[key]) {
		return nil, conditionFailed()
	}
	delete(f.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

var addPattern = regexp.MustCompile(`^ADD\s+(\S+)\s+(\S+)$`)

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["UpdateItem"]; err != nil {
		return nil, err
	}

	m := addPattern.FindStringSubmatch(strings.TrimSpace(aws.ToString(params.UpdateExpression)))
	if m == nil {
		return nil, fmt.Errorf("fake: unsupported update %q", aws.ToString(params.UpdateExpression))
	}
	attr := resolveName(m[1], params.ExpressionAttributeNames)
	delta, _ := strconv.ParseFloat(params.ExpressionAttributeValues[m[2]].(*types.AttributeValueMemberN).Value, 64)

	key := itemKey(params.Key)
	item, ok := f.items[key]
	if !ok {
		item = copyItem(params.Key)
	}
	current := 0.0
	if n, ok := item[attr].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseFloat(n.Value, 64)
	}
	updated := &types.AttributeValueMemberN{Value: strconv.FormatFloat(current+delta, 'f', -1, 64)}
	item[attr] = updated
	f.items[key] = item

	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{attr: updated}}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["Query"]; err != nil {
		return nil, err
	}

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if evaluate(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, item) {
			matched = append(matched, copyItem(item))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return str(matched[i]["SK"]) < str(matched[j]["SK"]) })
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if params.ExclusiveStartKey != nil {
		start := itemKey(params.ExclusiveStartKey)
		for i, item := range matched {
			if itemKey(item) == start {
				matched = matched[i+1:]
				break
			}
		}
	}

	out := &dynamodb.QueryOutput{Items: matched}
	if f.pageSize > 0 && len(matched) > f.pageSize {
		out.Items = matched[:f.pageSize]
		last := out.Items[f.pageSize-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}

var (
	existsPattern     = regexp.MustCompile(`^attribute_(not_)?exists\s*\(\s*(\S+?)\s*\)$`)
	beginsWithPattern = regexp.MustCompile(`^begins_with\s*\(\s*(\S+?)\s*,\s*(\S+?)\s*\)$`)
	comparePattern    = regexp.MustCompile(`^(\S+)\s*(<=|<|=)\s*(\S+)$`)
)

func evaluate(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) bool {
	expr = trimParens(strings.TrimSpace(expr))
	if parts := splitTop(expr, " OR "); len(parts) > 1 {
		for _, part := range parts {
			if evaluate(part, names, values, item) {
				return true
			}
		}
		return false
	}
	if parts := splitTop(expr, " AND "); len(parts) > 1 {
		for _, part := range parts {
			if !evaluate(part, names, values, item) {
				return false
			}
		}
		return true
	}

	if m := existsPattern.FindStringSubmatch(expr); m != nil {
		_, exists := item[resolveName(m[2], names)]
		return exists == (m[1] == "")
	}
	if m := beginsWithPattern.FindStringSubmatch(expr); m != nil {
		return strings.HasPrefix(str(item[resolveName(m[1], names)]), str(values[m[2]]))
	}
	if m := comparePattern.FindStringSubmatch(expr); m != nil {
		cmp, ok := compare(item[resolveName(m[1], names)], values[m[3]])
		if !ok {
			return false
		}
		switch m[2] {
		case "<=":
			return cmp <= 0
		case "<":
			return cmp < 0
		default:
			return cmp == 0
		}
	}
	panic(fmt.Sprintf("fake: unsupported expression %q", expr))
}

func resolveName(token string, names map[string]string) string {
	if name, ok := names[token]; ok {
		return name
	}
	return token
}

func compare(a, b types.AttributeValue) (int, bool) {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Value, bv.Value), true
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, _ := strconv.ParseFloat(av.Value, 64)
		y, _ := strconv.ParseFloat(bv.Value, 64)
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// splitTop splits expr on sep where sep is not nested in parentheses
func splitTop(expr, sep string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(expr[i:], sep) {
			parts = append(parts, expr[last:i])
			last = i + len(sep)
			i += len(sep) - 1
		}
	}
	return append(parts, expr[last:])
}

// trimParens removes parentheses that wrap the whole expression
func trimParens(expr string) string {
	for strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		depth := 0
		wraps := true
		for i := 0; i < len(expr)-1; i++ {
			switch expr[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			if depth == 0 {
				wraps = false
				break
			}
		}
		if !wraps {
			return expr
		}
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}
