package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/analytics"
	"github.com/ANIKETSHETTY47/smart-utility-billing/internal/domain"
)

// S3API is the subset of the S3 client the archive uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ReportArchive stores monthly billing reports in S3.
type ReportArchive struct {
	svc       S3API
	presigner *s3.PresignClient
	bucket    string
}

// MonthlyReport is the archived document for one utility and year.
type MonthlyReport struct {
	UtilityID   int64                    `json:"utility_id"`
	Year        int                      `json:"year"`
	GeneratedAt time.Time                `json:"generated_at"`
	Months      []analytics.MonthSummary `json:"months"`
}

func NewReportArchive(cfg aws.Config, bucket string) *ReportArchive {
	client := s3.NewFromConfig(cfg)
	return &ReportArchive{svc: client, presigner: s3.NewPresignClient(client), bucket: bucket}
}

// NewReportArchiveWithClient builds an archive over an existing client. No
// presigned links are generated.
func NewReportArchiveWithClient(svc S3API, bucket string) *ReportArchive {
	return &ReportArchive{svc: svc, bucket: bucket}
}

// ReportKey is the object key of a utility's yearly monthly-summary report.
func ReportKey(utilityID int64, year int) string {
	return fmt.Sprintf("reports/utility-%d/%d/monthly-summary.json", utilityID, year)
}

// PutMonthlyReport uploads the report and returns its key.
func (c *ReportArchive) PutMonthlyReport(ctx context.Context, r MonthlyReport) (string, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := ReportKey(r.UtilityID, r.Year)
	_, err = c.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"generated-at": r.GeneratedAt.UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

// GetMonthlyReport downloads a previously archived report. A report that was
// never archived yields domain.ErrNotFound.
func (c *ReportArchive) GetMonthlyReport(ctx context.Context, utilityID int64, year int) (*MonthlyReport, error) {
	key := ReportKey(utilityID, year)
	out, err := c.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("report %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer out.Body.Close()

	var r MonthlyReport
	if err := json.NewDecoder(out.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}

// ReportURL returns a one-hour download link for key, or "" when the archive
// has no presigner.
func (c *ReportArchive) ReportURL(ctx context.Context, key string) (string, error) {
	if c.presigner == nil {
		return "", nil
	}
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 1 * time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return req.URL, nil
}
