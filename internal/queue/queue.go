// Package queue defines the interface for handing stored disclosures to
// the downstream processing workers. The abstraction keeps the pipeline
// independent of the concrete broker (RabbitMQ, GCP Pub/Sub).
//
// Consumers take each TaskMessage and upsert the disclosure into the
// serving API with an idempotent PUT keyed by rcept_no; that side of the
// boundary lives outside this repository.
package queue

import "context"

// TaskMessage carries everything a downstream worker needs to process one
// stored disclosure. Field names follow the provider's list-endpoint
// vocabulary so workers can correlate messages with raw filings.
type TaskMessage struct {
	CorpCode    string `json:"corp_code"`
	CorpName    string `json:"corp_name"`
	StockCode   string `json:"stock_code,omitempty"`
	CorpClass   string `json:"corp_cls"`
	ReportName  string `json:"report_nm"`
	ReceiptNo   string `json:"rcept_no"`
	FilerName   string `json:"flr_nm,omitempty"`
	ReceiptDate string `json:"rcept_dt"`
	Remark      string `json:"rm,omitempty"`
	ObjectKey   string `json:"object_key"`
	ContentType string `json:"content_type"`
	FileSize    int    `json:"file_size"`
	PollingDate string `json:"polling_date"`
}

// Provider defines the common interface for a task queue.
type Provider interface {
	// Publish enqueues one task message for downstream processing.
	Publish(ctx context.Context, msg TaskMessage) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpProvider is a queue provider that performs no operations. It is
// useful for testing or running the ingester without a real broker.
type NoOpProvider struct{}

// Publish for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Publish(_ context.Context, _ TaskMessage) error { return nil }

// Close for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Close() error { return nil }
