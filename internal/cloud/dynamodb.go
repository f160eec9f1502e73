package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
)

// DynamoAPI is the subset of the DynamoDB client the cache uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// SummaryCache keeps computed analytics reports in DynamoDB, keyed by report
// and scope. Entries carry an expiresAt attribute for the table's TTL.
type SummaryCache struct {
	svc   DynamoAPI
	table string
	ttl   time.Duration
}

// summaryItem is the DynamoDB structure of a cached report. Payload is the
// report's JSON so decimal values survive unchanged.
type summaryItem struct {
	CacheKey    string `dynamodbav:"cacheKey"`
	ReportType  string `dynamodbav:"reportType"`
	Payload     string `dynamodbav:"payload"`
	GeneratedAt int64  `dynamodbav:"generatedAt"`
	ExpiresAt   int64  `dynamodbav:"expiresAt"`
}

func NewSummaryCache(cfg aws.Config, table string, ttl time.Duration) *SummaryCache {
	return &SummaryCache{svc: dynamodb.NewFromConfig(cfg), table: table, ttl: ttl}
}

func NewSummaryCacheWithClient(svc DynamoAPI, table string, ttl time.Duration) *SummaryCache {
	return &SummaryCache{svc: svc, table: table, ttl: ttl}
}

func UserYearKey(userID int64, year int) string {
	return fmt.Sprintf("user-year#%d#%d", userID, year)
}

func UtilityMonthsKey(utilityID int64, year int) string {
	return fmt.Sprintf("utility-months#%d#%d", utilityID, year)
}

// PutUserYear caches a user's yearly summary.
func (c *SummaryCache) PutUserYear(ctx context.Context, s analytics.UserYearSummary, now time.Time) error {
	return c.put(ctx, UserYearKey(s.UserID, s.Year), "user_year", s, now)
}

// GetUserYear returns the cached summary, or ok=false on a miss or an expired entry.
func (c *SummaryCache) GetUserYear(ctx context.Context, userID int64, year int, now time.Time) (s analytics.UserYearSummary, ok bool, err error) {
	ok, err = c.get(ctx, UserYearKey(userID, year), &s, now)
	return s, ok, err
}

// PutUtilityMonths caches a utility's monthly summary rows.
func (c *SummaryCache) PutUtilityMonths(ctx context.Context, utilityID int64, year int, rows []analytics.MonthSummary, now time.Time) error {
	return c.put(ctx, UtilityMonthsKey(utilityID, year), "utility_months", rows, now)
}

func (c *SummaryCache) GetUtilityMonths(ctx context.Context, utilityID int64, year int, now time.Time) (rows []analytics.MonthSummary, ok bool, err error) {
	ok, err = c.get(ctx, UtilityMonthsKey(utilityID, year), &rows, now)
	return rows, ok, err
}

// Invalidate drops the cached entries for a user's and a utility's year.
func (c *SummaryCache) Invalidate(ctx context.Context, userID, utilityID int64, year int) error {
	for _, key := range []string{UserYearKey(userID, year), UtilityMonthsKey(utilityID, year)} {
		_, err := c.svc.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(c.table),
			Key: map[string]types.AttributeValue{
				"cacheKey": &types.AttributeValueMemberS{Value: key},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete cache item %s: %w", key, err)
		}
	}
	return nil
}

func (c *SummaryCache) put(ctx context.Context, key, reportType string, v any, now time.Time) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", reportType, err)
	}

	item, err := attributevalue.MarshalMap(summaryItem{
		CacheKey:    key,
		ReportType:  reportType,
		Payload:     string(payload),
		GeneratedAt: now.Unix(),
		ExpiresAt:   now.Add(c.ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache item: %w", err)
	}

	_, err = c.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in DynamoDB: %w", err)
	}
	return nil
}

func (c *SummaryCache) get(ctx context.Context, key string, dst any, now time.Time) (bool, error) {
	out, err := c.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"cacheKey": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if len(out.Item) == 0 {
		return false, nil
	}

	var item summaryItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache item: %w", err)
	}
	// DynamoDB TTL deletion is lazy.
	if item.ExpiresAt <= now.Unix() {
		return false, nil
	}
	if err := json.Unmarshal([]byte(item.Payload), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", item.ReportType, err)
	}
	return true, nil
}
