package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConflict is returned by DynamoStore.Save when another writer updated the
// ledger since it was loaded.
var ErrConflict = errors.New("reminders: ledger changed by another writer")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type dynamoEntry struct {
	AppointmentDate string `dynamodbav:"appointmentDate"`
	ReminderCount   int    `dynamodbav:"reminderCount"`
}

type dynamoRecord struct {
	LedgerID  string                   `dynamodbav:"ledgerId"`
	Doctors   map[string][]dynamoEntry `dynamodbav:"doctors"`
	Version   int64                    `dynamodbav:"version"`
	UpdatedAt string                   `dynamodbav:"updatedAt"`
}

// DynamoStore keeps the ledger as a single item keyed by ledgerId. Writes are
// conditional on the version read by the last Load. When an item is too
// damaged to read its version, the next Save overwrites it unconditionally.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	ledgerID  string

	mu        sync.Mutex
	version   int64
	overwrite bool
}

type dynamoVersion struct {
	Version int64 `dynamodbav:"version"`
}

func NewDynamoStore(client dynamoAPI, tableName, ledgerID string) *DynamoStore {
	if client == nil {
		panic("reminders: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("reminders: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, ledgerID: ledgerID}
}

func (s *DynamoStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"ledgerId": &types.AttributeValueMemberS{Value: s.ledgerID},
	}
}

func (s *DynamoStore) Load(ctx context.Context) (Ledger, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: get ledger item: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overwrite = false
	if out.Item == nil {
		s.version = 0
		return Ledger{}, nil
	}

	var head dynamoVersion
	if err := attributevalue.UnmarshalMap(out.Item, &head); err != nil {
		s.version = 0
		s.overwrite = true
		return nil, fmt.Errorf("%w: version: %v", ErrCorrupt, err)
	}
	s.version = head.Version
	if _, ok := out.Item["version"]; !ok {
		s.overwrite = true
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	ledger := make(Ledger, len(rec.Doctors))
	for doctor, entries := range rec.Doctors {
		list := make([]Entry, 0, len(entries))
		for _, e := range entries {
			list = append(list, Entry{AppointmentDate: e.AppointmentDate, ReminderCount: e.ReminderCount})
		}
		ledger[doctor] = list
	}
	return ledger, nil
}

func (s *DynamoStore) Save(ctx context.Context, ledger Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := dynamoRecord{
		LedgerID:  s.ledgerID,
		Doctors:   make(map[string][]dynamoEntry, len(ledger)),
		Version:   s.version + 1,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for doctor, entries := range ledger {
		list := make([]dynamoEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, dynamoEntry{AppointmentDate: e.AppointmentDate, ReminderCount: e.ReminderCount})
		}
		rec.Doctors[doctor] = list
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("reminders: marshal ledger item: %w", err)
	}
	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}
	if !s.overwrite {
		input.ConditionExpression = aws.String("attribute_not_exists(ledgerId) OR #version = :version")
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":version": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.version)},
		}
	}
	if _, err = s.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConflict
		}
		return fmt.Errorf("reminders: put ledger item: %w", err)
	}
	s.version = rec.Version
	s.overwrite = false
	return nil
}
