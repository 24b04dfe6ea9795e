package logger

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

const (
	axiomBatchSize    = 500
	axiomFlushTimeout = 10 * time.Second
)

// AxiomSink buffers entries and ingests them into an Axiom dataset in
// batches. The installer is short-lived, so the buffer is also flushed on Close.
type AxiomSink struct {
	name       string
	dataset    string
	client     *axiom.Client
	configHash string
	pending    []axiom.Event
	mu         sync.Mutex
}

// AxiomSinkConfig represents the configuration for an Axiom sink
type AxiomSinkConfig struct {
	Token   string `json:"token"`
	Dataset string `json:"dataset"`
	URL     string `json:"url,omitempty"`
}

func init() {
	RegisterSinkFactory("axiom", NewAxiomSink)
}

// NewAxiomSink creates a new Axiom sink
func NewAxiomSink(name string, config map[string]interface{}) (Sink, error) {
	var sinkConfig AxiomSinkConfig
	if err := decodeSinkConfig(config, &sinkConfig); err != nil {
		return nil, fmt.Errorf("failed to parse axiom sink config: %w", err)
	}

	if sinkConfig.Token == "" {
		return nil, fmt.Errorf("axiom sink requires 'token' field")
	}

	if sinkConfig.Dataset == "" {
		return nil, fmt.Errorf("axiom sink requires 'dataset' field")
	}

	options := []axiom.Option{axiom.SetToken(sinkConfig.Token)}
	if sinkConfig.URL != "" {
		options = append(options, axiom.SetURL(sinkConfig.URL))
	}

	client, err := axiom.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Axiom client: %w", err)
	}

	return &AxiomSink{
		name:       name,
		dataset:    sinkConfig.Dataset,
		client:     client,
		configHash: computeConfigHash(config),
	}, nil
}

// Write queues an entry and ingests the batch once it is full.
func (s *AxiomSink) Write(entry *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return fmt.Errorf("axiom sink %s is closed", s.name)
	}

	event := make(axiom.Event, len(entry.Data))
	for k, v := range entry.Data {
		event[k] = v
	}
	s.pending = append(s.pending, event)

	if len(s.pending) >= axiomBatchSize {
		return s.flushLocked()
	}
	return nil
}

// Close ingests whatever is still buffered.
func (s *AxiomSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.flushLocked()
	s.client = nil
	return err
}

func (s *AxiomSink) Name() string {
	return s.name
}

func (s *AxiomSink) ConfigHash() string {
	return s.configHash
}

func (s *AxiomSink) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), axiomFlushTimeout)
	defer cancel()

	events := s.pending
	s.pending = nil

	status, err := s.client.IngestEvents(ctx, s.dataset, events, ingest.SetTimestampField("timestamp"))
	if err != nil {
		return fmt.Errorf("axiom ingest of %d events failed: %w", len(events), err)
	}
	if status != nil && status.Failed > 0 {
		log.Printf("[logger:axiom] Sink %s: %d of %d events rejected by dataset %s", s.name, status.Failed, len(events), s.dataset)
	}
	return nil
}
