package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

type mockDynamo struct{ mock.Mock }

func (m *mockDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func TestReportArchive_PutAndGet(t *testing.T) {
	ctx := context.Background()
	svc := new(mockS3)
	archive := NewReportArchiveWithClient(svc, "reports")
	report := MonthlyReport{
		UtilityID:   5,
		Year:        2024,
		GeneratedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Months: []analytics.MonthSummary{{
			BillingMonth:      "2024-03",
			MonthNumber:       3,
			TotalRevenue:      decimal.RequireFromString("1000.10"),
			PaymentPercentage: decimal.RequireFromString("33.33"),
		}},
	}

	var uploaded []byte
	svc.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "reports" &&
			aws.ToString(in.Key) == "reports/utility-5/2024/monthly-summary.json" &&
			aws.ToString(in.ContentType) == "application/json"
	})).Run(func(args mock.Arguments) {
		uploaded, _ = io.ReadAll(args.Get(1).(*s3.PutObjectInput).Body)
	}).Return(&s3.PutObjectOutput{}, nil)

	key, err := archive.PutMonthlyReport(ctx, report)
	require.NoError(t, err)
	assert.Equal(t, ReportKey(5, 2024), key)

	svc.On("GetObject", ctx, mock.Anything).
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(uploaded))}, nil)

	got, err := archive.GetMonthlyReport(ctx, 5, 2024)
	require.NoError(t, err)
	require.Len(t, got.Months, 1)
	assert.True(t, report.Months[0].TotalRevenue.Equal(got.Months[0].TotalRevenue))

	url, err := archive.ReportURL(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, url)
	svc.AssertExpectations(t)
}

func TestReportArchive_UploadError(t *testing.T) {
	svc := new(mockS3)
	svc.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := NewReportArchiveWithClient(svc, "reports").PutMonthlyReport(context.Background(), MonthlyReport{UtilityID: 1})

	assert.ErrorContains(t, err, "failed to upload to S3")
}

func TestReportArchive_GetMissingIsNotFound(t *testing.T) {
	svc := new(mockS3)
	svc.On("GetObject", mock.Anything, mock.Anything).Return(nil, &s3types.NoSuchKey{})

	_, err := NewReportArchiveWithClient(svc, "reports").GetMonthlyReport(context.Background(), 5, 2023)

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "reports/utility-5/2023/monthly-summary.json")
}

func TestReportArchive_GetOtherErrorPassesThrough(t *testing.T) {
	svc := new(mockS3)
	svc.On("GetObject", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewReportArchiveWithClient(svc, "reports").GetMonthlyReport(context.Background(), 5, 2023)

	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "failed to download from S3")
}

func TestEventPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	svc := new(mockSNS)
	pub := NewEventPublisherWithClient(svc, "arn:aws:sns:ap-south-1:123:billing")

	svc.On("Publish", ctx, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var e BillEvent
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &e); err != nil {
			return false
		}
		attr := in.MessageAttributes["event_type"]
		return aws.ToString(in.TopicArn) == "arn:aws:sns:ap-south-1:123:billing" &&
			aws.ToString(in.Subject) == "Billing: bill.paid AB-1" &&
			aws.ToString(attr.StringValue) == "bill.paid" &&
			e.BillID == 7
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	id, err := pub.Publish(ctx, BillEvent{Type: EventBillPaid, BillID: 7, BillNumber: "AB-1", TotalAmount: decimal.NewFromInt(10)})

	require.NoError(t, err)
	assert.Equal(t, "m-1", id)
	svc.AssertExpectations(t)
}

func TestSubjectFor_Sweep(t *testing.T) {
	assert.Equal(t, "Billing: 3 bills marked overdue", subjectFor(BillEvent{Type: EventOverdueSweep, Count: 3}))
}

func TestSummaryCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := new(mockDynamo)
	cache := NewSummaryCacheWithClient(svc, "BillingSummaries", time.Hour)
	summary := analytics.UserYearSummary{UserID: 10, Year: 2024, TotalBills: 2, TotalAmount: decimal.RequireFromString("585.50")}

	var stored map[string]ddbtypes.AttributeValue
	svc.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return aws.ToString(in.TableName) == "BillingSummaries"
	})).Run(func(args mock.Arguments) {
		stored = args.Get(1).(*dynamodb.PutItemInput).Item
	}).Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, cache.PutUserYear(ctx, summary, now))

	var item summaryItem
	require.NoError(t, attributevalue.UnmarshalMap(stored, &item))
	assert.Equal(t, "user-year#10#2024", item.CacheKey)
	assert.Equal(t, now.Add(time.Hour).Unix(), item.ExpiresAt)

	svc.On("GetItem", ctx, mock.Anything).Return(&dynamodb.GetItemOutput{Item: stored}, nil)

	got, ok, err := cache.GetUserYear(ctx, 10, 2024, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, got.TotalBills)
	assert.True(t, summary.TotalAmount.Equal(got.TotalAmount))

	_, ok, err = cache.GetUserYear(ctx, 10, 2024, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are misses")
}

func TestSummaryCache_Miss(t *testing.T) {
	svc := new(mockDynamo)
	svc.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, ok, err := NewSummaryCacheWithClient(svc, "t", time.Hour).GetUtilityMonths(context.Background(), 5, 2024, time.Now())

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummaryCache_Invalidate(t *testing.T) {
	svc := new(mockDynamo)
	svc.On("DeleteItem", mock.Anything, mock.Anything).Return(&dynamodb.DeleteItemOutput{}, nil).Twice()

	require.NoError(t, NewSummaryCacheWithClient(svc, "t", time.Hour).Invalidate(context.Background(), 10, 5, 2024))
	svc.AssertNumberOfCalls(t, "DeleteItem", 2)
}
