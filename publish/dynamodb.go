// Package publish uploads aggregated grid-search rows to DynamoDB so runs
// from several machines can be compared in one table.
package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"

	"github.com/RyanBlaney/sonido-sync/gridsearch"
	"github.com/RyanBlaney/sonido-sync/logging"
)

// maxBatch is the DynamoDB limit on put requests per BatchWriteItem call.
const maxBatch = 25

// Config holds publisher configuration
type Config struct {
	Table      string        `json:"table"`
	Region     string        `json:"region"`
	Endpoint   string        `json:"endpoint"` // empty uses the AWS default
	MaxRetries int           `json:"max_retries"`
	Backoff    time.Duration `json:"backoff"` // doubled after every retry of unprocessed items
}

// DefaultConfig targets a local DynamoDB
func DefaultConfig() *Config {
	return &Config{
		Table:      "sonido-sync-results",
		Region:     "localhost",
		Endpoint:   "http://localhost:8000",
		MaxRetries: 5,
		Backoff:    100 * time.Millisecond,
	}
}

// BatchWriter is the part of the DynamoDB client the publisher needs.
type BatchWriter interface {
	BatchWriteItemWithContext(ctx aws.Context, input *dynamodb.BatchWriteItemInput, opts ...request.Option) (*dynamodb.BatchWriteItemOutput, error)
}

// Item is the stored form of one aggregated row.
type Item struct {
	RunID            string  `dynamodbav:"PK"`
	Tuple            string  `dynamodbav:"SK"`
	ODF              string  `dynamodbav:"ODF"`
	Downsampling     int     `dynamodbav:"Downsampling"`
	FrameSize        int     `dynamodbav:"FrameSize"`
	HopScale         int     `dynamodbav:"HopScale"`
	Window           string  `dynamodbav:"Window"`
	Offset           int     `dynamodbav:"Offset"`
	Mean             float64 `dynamodbav:"Mean"`
	StdDev           float64 `dynamodbav:"StdDev"`
	Median           float64 `dynamodbav:"Median"`
	FractionPositive float64 `dynamodbav:"FractionPositive"`
	Count            int     `dynamodbav:"Count"`
}

// NewItem keys a row by run and tuple.
func NewItem(runID string, row gridsearch.Row) Item {
	t := row.Tuple
	return Item{
		RunID:            runID,
		Tuple:            strings.Join(t.Record(), "|"),
		ODF:              t.ODF.String(),
		Downsampling:     t.Downsampling,
		FrameSize:        t.FrameSize,
		HopScale:         t.HopScale,
		Window:           t.Window.String(),
		Offset:           t.Offset,
		Mean:             row.Summary.Mean,
		StdDev:           row.Summary.StdDev,
		Median:           row.Summary.Median,
		FractionPositive: row.Summary.FractionPositive,
		Count:            row.Summary.Count,
	}
}

// Publisher writes rows to a DynamoDB table
type Publisher struct {
	config *Config
	client BatchWriter
	logger logging.Logger
}

// NewPublisher creates a publisher backed by a real DynamoDB session.
func NewPublisher(config *Config, logger logging.Logger) (*Publisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("create dynamodb session: %w", err)
	}
	return NewPublisherWithClient(config, dynamodb.New(sess), logger), nil
}

// NewPublisherWithClient creates a publisher around an existing client.
func NewPublisherWithClient(config *Config, client BatchWriter, logger logging.Logger) *Publisher {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Publisher{config: config, client: client, logger: logger}
}

// Publish stores every row under runID and returns how many items were written.
func (p *Publisher) Publish(ctx context.Context, runID string, rows []gridsearch.Row) (int, error) {
	if p.config.Table == "" {
		return 0, fmt.Errorf("dynamodb table must be set")
	}
	logger := p.logger.WithFields(logging.Fields{
		"component": "publisher",
		"table":     p.config.Table,
		"run_id":    runID,
	})

	written := 0
	for start := 0; start < len(rows); start += maxBatch {
		end := min(start+maxBatch, len(rows))

		requests := make([]*dynamodb.WriteRequest, 0, end-start)
		for _, row := range rows[start:end] {
			item, err := dynamodbattribute.MarshalMap(NewItem(runID, row))
			if err != nil {
				return written, fmt.Errorf("marshal %s: %w", row.Tuple, err)
			}
			requests = append(requests, &dynamodb.WriteRequest{
				PutRequest: &dynamodb.PutRequest{Item: item},
			})
		}

		if err := p.writeBatch(ctx, requests); err != nil {
			return written, err
		}
		written += len(requests)
		logger.Debug("batch written", logging.Fields{"items": written, "total": len(rows)})
	}

	logger.Info("published results", logging.Fields{"items": written})
	return written, nil
}

// writeBatch sends one batch and retries whatever DynamoDB leaves unprocessed.
func (p *Publisher) writeBatch(ctx context.Context, requests []*dynamodb.WriteRequest) error {
	pending := map[string][]*dynamodb.WriteRequest{p.config.Table: requests}
	backoff := p.config.Backoff

	for attempt := 0; ; attempt++ {
		out, err := p.client.BatchWriteItemWithContext(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("batch write: %w", err)
		}
		if out == nil || len(out.UnprocessedItems[p.config.Table]) == 0 {
			return nil
		}
		if attempt >= p.config.MaxRetries {
			return fmt.Errorf("batch write: %d items still unprocessed after %d retries",
				len(out.UnprocessedItems[p.config.Table]), attempt)
		}

		pending = out.UnprocessedItems
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
