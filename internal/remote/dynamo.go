package remote

import (
	"context"
	"fmt"

	"storefront/internal/models"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the remote store.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore mirrors products and orders into two DynamoDB tables keyed by "id".
type DynamoStore struct {
	client        DynamoDBAPI
	productsTable string
	ordersTable   string
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(client DynamoDBAPI, productsTable, ordersTable string) *DynamoStore {
	return &DynamoStore{
		client:        client,
		productsTable: productsTable,
		ordersTable:   ordersTable,
	}
}

// NewDynamoClient loads AWS config for region and optionally points the client at endpoint
// (DynamoDB Local, LocalStack).
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = sdkaws.String(endpoint)
		}
	}), nil
}

// ListProducts scans the products table.
func (s *DynamoStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: &s.productsTable,
	})

	products := make([]models.Product, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan products: %w", err)
		}

		var batch []models.Product
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal products: %w", err)
		}
		products = append(products, batch...)
	}
	return products, nil
}

// PutProduct overwrites one product document.
func (s *DynamoStore) PutProduct(ctx context.Context, product models.Product) error {
	return s.put(ctx, s.productsTable, product)
}

// DeleteProduct removes one product document.
func (s *DynamoStore) DeleteProduct(ctx context.Context, id string) error {
	return s.delete(ctx, s.productsTable, id)
}

// PutOrder overwrites one order document.
func (s *DynamoStore) PutOrder(ctx context.Context, order models.Order) error {
	return s.put(ctx, s.ordersTable, order)
}

// DeleteOrder removes one order document.
func (s *DynamoStore) DeleteOrder(ctx context.Context, id string) error {
	return s.delete(ctx, s.ordersTable, id)
}

func (s *DynamoStore) put(ctx context.Context, table string, doc interface{}) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", table, err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &table,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put %s item: %w", table, err)
	}
	return nil
}

func (s *DynamoStore) delete(ctx context.Context, table, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &table,
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	}); err != nil {
		return fmt.Errorf("delete %s item: %w", table, err)
	}
	return nil
}
