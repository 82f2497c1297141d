package command

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Journal uchovává historii odeslaných příkazů.
type Journal interface {
	Save(ctx context.Context, rec Record) error
}

// NopJournal se použije, když není nastavená tabulka.
type NopJournal struct{}

func (NopJournal) Save(context.Context, Record) error { return nil }

// putItemAPI je podmnožina *dynamodb.Client, kvůli testům.
type putItemAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoJournal ukládá odeslané příkazy do tabulky DynamoDB (klíč request_id, TTL expires_at).
type DynamoJournal struct {
	client    putItemAPI
	tableName string
}

// NewDynamoJournal bere cokoli s PutItem, v produkci *dynamodb.Client.
func NewDynamoJournal(client putItemAPI, tableName string) *DynamoJournal {
	return &DynamoJournal{client: client, tableName: tableName}
}

// Save zapíše jeden záznam.
func (j *DynamoJournal) Save(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	_, err = j.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(j.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store command in dynamodb: %w", err)
	}
	return nil
}
