// Package dynamodb stores the version record, the event log and the pipeline lock in a
// single DynamoDB table keyed by PK/SK.
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// API is the subset of the DynamoDB client used by this package
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

var errMissingSeq = errors.New("counter update returned no Seq attribute")

// Key layout
const (
	recordSK  = "RECORD"
	counterSK = "COUNTER"
	eventSK   = "EVENT#"
	lockSK    = "LOCK"
)

func topologyPK(topologyID string) string {
	return fmt.Sprintf("TOPOLOGY#%s", topologyID)
}

func eventsPK(topologyID string) string {
	return fmt.Sprintf("EVENTS#%s", topologyID)
}

func eventKey(seq int64) string {
	return fmt.Sprintf("%s%020d", eventSK, seq)
}

func lockPK(resource string) string {
	return fmt.Sprintf("LOCK#%s", resource)
}
