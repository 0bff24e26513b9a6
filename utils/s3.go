package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"paylink/config"
	"paylink/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the slice of the S3 API the receipt archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client for S3 or an S3-compatible store (R2, MinIO)
// when RECEIPTS_ENDPOINT is set.
func NewS3Client(cfg config.ReceiptsConfig) (*s3.Client, error) {
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("RECEIPTS_ACCESS_KEY_ID or RECEIPTS_SECRET_ACCESS_KEY is not set")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load receipts storage config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Receipt is the archived, immutable copy of a completed ledger entry.
type Receipt struct {
	TransactionID      uint      `json:"transaction_id"`
	LinkToken          string    `json:"link_token,omitempty"`
	PayerID            uint      `json:"payer_id"`
	PayeeID            uint      `json:"payee_id"`
	GrossAmount        string    `json:"gross_amount"`
	PlatformFee        string    `json:"platform_fee"`
	PayeeEarnings      string    `json:"payee_earnings"`
	FeeRate            string    `json:"fee_rate"`
	Currency           string    `json:"currency"`
	ProcessorReference string    `json:"processor_reference,omitempty"`
	RecordedAt         time.Time `json:"recorded_at"`
}

// ReceiptArchiver writes one JSON receipt per completed transaction.
type ReceiptArchiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewReceiptArchiver(client ObjectPutter, bucket, prefix string) *ReceiptArchiver {
	return &ReceiptArchiver{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// ReceiptKey is prefix/YYYY/MM/DD/transaction-<id>.json in UTC.
func (a *ReceiptArchiver) ReceiptKey(txn *models.Transaction) string {
	day := txn.CreatedAt.UTC().Format("2006/01/02")
	return path.Join(a.prefix, day, fmt.Sprintf("transaction-%d.json", txn.ID))
}

func (a *ReceiptArchiver) TransactionRecorded(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.TransactionCompleted {
		return nil
	}
	receipt := Receipt{
		TransactionID: txn.ID,
		PayerID:       txn.PayerID,
		PayeeID:       txn.PayeeID,
		GrossAmount:   txn.GrossAmount.StringFixed(2),
		PlatformFee:   txn.PlatformFee.StringFixed(2),
		PayeeEarnings: txn.PayeeEarnings.StringFixed(2),
		FeeRate:       txn.FeeRate.String(),
		Currency:      txn.Currency,
		RecordedAt:    txn.CreatedAt.UTC(),
	}
	receipt.LinkToken = GetStringValue(txn.LinkToken)
	receipt.ProcessorReference = GetStringValue(txn.ProcessorReference)

	body, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return err
	}
	key := a.ReceiptKey(txn)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("receipt upload %s failed: %w", key, err)
	}
	return nil
}
