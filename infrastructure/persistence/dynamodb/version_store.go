package dynamodb

import (
	"context"
	"encoding/json"
	"errors"

	"sdx-topology/domain/topology"
	apperrors "sdx-topology/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// recordItem is the stored form of a VersionRecord. The record itself is kept as a
// JSON document so that the item is always replaced as a whole.
type recordItem struct {
	PK            string `dynamodbav:"PK"` // TOPOLOGY#<topology_id>
	SK            string `dynamodbav:"SK"` // RECORD
	SchemaVersion int    `dynamodbav:"SchemaVersion"`
	Version       int    `dynamodbav:"Version"`
	Timestamp     string `dynamodbav:"Timestamp"`
	Record        string `dynamodbav:"Record"`
}

// VersionStore implements ports.VersionStore on DynamoDB
type VersionStore struct {
	client     API
	tableName  string
	topologyID string
	logger     *zap.Logger
}

// NewVersionStore creates a store for the topology identified by topologyID
func NewVersionStore(client API, tableName, topologyID string, logger *zap.Logger) *VersionStore {
	return &VersionStore{
		client:     client,
		tableName:  tableName,
		topologyID: topologyID,
		logger:     logger,
	}
}

func (s *VersionStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: topologyPK(s.topologyID)},
		"SK": &types.AttributeValueMemberS{Value: recordSK},
	}
}

func (s *VersionStore) Read(ctx context.Context) (topology.VersionRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("get version record", err)
	}
	if len(out.Item) == 0 {
		return topology.VersionRecord{}, apperrors.NewStoreNotInitializedError()
	}

	var item recordItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("unmarshal version record", err)
	}
	var record topology.VersionRecord
	if err := json.Unmarshal([]byte(item.Record), &record); err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("decode version record", err)
	}
	if err := record.Validate(); err != nil {
		return topology.VersionRecord{}, apperrors.NewDatabaseError("validate version record", err)
	}
	return record, nil
}

func (s *VersionStore) Initialize(ctx context.Context, identity topology.Identity, timestamp string) (topology.VersionRecord, error) {
	if err := identity.Validate(); err != nil {
		return topology.VersionRecord{}, apperrors.NewValidationError(err.Error())
	}
	if identity.TopologyID() != s.topologyID {
		return topology.VersionRecord{}, apperrors.NewValidationError("identity does not match the store topology " + s.topologyID)
	}

	record := topology.NewVersionRecord(identity, timestamp)
	cond := expression.Name("PK").AttributeNotExists()
	err := s.put(ctx, record, cond)
	if isConditionFailed(err) {
		s.logger.Debug("Version record already initialized", zap.String("topologyID", s.topologyID))
		return s.Read(ctx)
	}
	if err != nil {
		return topology.VersionRecord{}, err
	}

	s.logger.Info("Initialized version record",
		zap.String("topologyID", s.topologyID),
		zap.String("timestamp", timestamp),
	)
	return record, nil
}

// Commit replaces base with next. The put is conditional on the stored item still
// carrying the version and timestamp of base, which fences off a replica whose lock
// lease expired while it was publishing.
func (s *VersionStore) Commit(ctx context.Context, base, next topology.VersionRecord) error {
	if err := next.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	cond := expression.Name("PK").AttributeExists().And(
		expression.Name("Version").Equal(expression.Value(base.Version)),
		expression.Name("Timestamp").Equal(expression.Value(base.Timestamp)),
	)
	err := s.put(ctx, next, cond)
	if !isConditionFailed(err) {
		return err
	}

	stored, readErr := s.Read(ctx)
	if readErr != nil {
		return readErr
	}
	s.logger.Warn("Version record changed since it was read",
		zap.String("topologyID", s.topologyID),
		zap.Int("baseVersion", base.Version),
		zap.Int("storedVersion", stored.Version),
	)
	return apperrors.NewVersionConflictError(base.Version, stored.Version)
}

func (s *VersionStore) put(ctx context.Context, record topology.VersionRecord, cond expression.ConditionBuilder) error {
	data, err := json.Marshal(record)
	if err != nil {
		return apperrors.NewInternalError("encode version record").WithCause(err)
	}
	item, err := attributevalue.MarshalMap(recordItem{
		PK:            topologyPK(s.topologyID),
		SK:            recordSK,
		SchemaVersion: record.SchemaVersion,
		Version:       record.Version,
		Timestamp:     record.Timestamp,
		Record:        string(data),
	})
	if err != nil {
		return apperrors.NewDatabaseError("marshal version record", err)
	}

	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return apperrors.NewInternalError("build condition").WithCause(err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tableName),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return err
		}
		return apperrors.NewDatabaseError("put version record", err)
	}
	return nil
}

func isConditionFailed(err error) bool {
	var conditionalCheckFailed *types.ConditionalCheckFailedException
	return errors.As(err, &conditionalCheckFailed)
}
