package dynamodb

import (
	"context"
	"strconv"
	"time"

	apperrors "sdx-topology/pkg/errors"
	"sdx-topology/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// eventItem is one event log entry
type eventItem struct {
	PK        string `dynamodbav:"PK"` // EVENTS#<topology_id>
	SK        string `dynamodbav:"SK"` // EVENT#<zero padded sequence>
	EventID   string `dynamodbav:"EventID"`
	Name      string `dynamodbav:"Name"`
	Sequence  int64  `dynamodbav:"Sequence"`
	CreatedAt string `dynamodbav:"CreatedAt"`
}

// EventLog implements ports.EventLog on DynamoDB. Sequence numbers come from an atomic
// counter item so entries sort in append order.
type EventLog struct {
	client     API
	tableName  string
	topologyID string
	maxEntries int
	logger     *zap.Logger
}

// NewEventLog creates a log for topologyID. maxEntries <= 0 disables trimming.
func NewEventLog(client API, tableName, topologyID string, maxEntries int, logger *zap.Logger) *EventLog {
	return &EventLog{
		client:     client,
		tableName:  tableName,
		topologyID: topologyID,
		maxEntries: maxEntries,
		logger:     logger,
	}
}

func (l *EventLog) Append(ctx context.Context, name string) error {
	seq, err := l.nextSequence(ctx)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(eventItem{
		PK:        eventsPK(l.topologyID),
		SK:        eventKey(seq),
		EventID:   uuid.New().String(),
		Name:      name,
		Sequence:  seq,
		CreatedAt: utils.FormatTimestamp(time.Now()),
	})
	if err != nil {
		return apperrors.NewDatabaseError("marshal event", err)
	}

	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      item,
	}); err != nil {
		return apperrors.NewDatabaseError("put event", err)
	}

	if l.maxEntries > 0 && seq > int64(l.maxEntries) {
		l.trim(ctx, seq-int64(l.maxEntries))
	}
	return nil
}

func (l *EventLog) nextSequence(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name("Seq"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, apperrors.NewInternalError("build counter update").WithCause(err)
	}

	out, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventsPK(l.topologyID)},
			"SK": &types.AttributeValueMemberS{Value: counterSK},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, apperrors.NewDatabaseError("increment event counter", err)
	}

	seqAttr, ok := out.Attributes["Seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, apperrors.NewDatabaseError("increment event counter", errMissingSeq)
	}
	seq, err := strconv.ParseInt(seqAttr.Value, 10, 64)
	if err != nil {
		return 0, apperrors.NewDatabaseError("parse event counter", err)
	}
	return seq, nil
}

// trim deletes the entry that fell out of the retention window. Failures only leave an
// extra entry behind.
func (l *EventLog) trim(ctx context.Context, seq int64) {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventsPK(l.topologyID)},
			"SK": &types.AttributeValueMemberS{Value: eventKey(seq)},
		},
	})
	if err != nil {
		l.logger.Warn("Failed to trim event log",
			zap.String("topologyID", l.topologyID),
			zap.Int64("sequence", seq),
			zap.Error(err),
		)
	}
}

func (l *EventLog) List(ctx context.Context) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(eventsPK(l.topologyID))).
		And(expression.Key("SK").BeginsWith(eventSK))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, apperrors.NewInternalError("build event query").WithCause(err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(l.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
		ScanIndexForward:          aws.Bool(true),
	}

	names := []string{}
	for {
		out, err := l.client.Query(ctx, input)
		if err != nil {
			return nil, apperrors.NewDatabaseError("query events", err)
		}

		var items []eventItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, apperrors.NewDatabaseError("unmarshal events", err)
		}
		for _, item := range items {
			names = append(names, item.Name)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return names, nil
}
