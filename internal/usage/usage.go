// Package usage implements the append-only usage ledger: an in-memory
// bounded ring always on, plus an optional DynamoDB durable tier.
package usage

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/oklog/ulid/v2"

	"github.com/apresai/ttsgateway/internal/keys"
)

// DefaultRingSize is the default in-memory cap (10,000 records).
const DefaultRingSize = 10_000

// Event is an immutable usage record.
type Event struct {
	ID               string    `json:"id" dynamodbav:"id"`
	KeyID            string    `json:"keyId" dynamodbav:"keyId"`
	Provider         string    `json:"provider" dynamodbav:"provider"`
	Path             string    `json:"path" dynamodbav:"path"`
	CharacterCount   int       `json:"characterCount" dynamodbav:"characterCount"`
	ElapsedMs        int64     `json:"elapsedMs" dynamodbav:"elapsedMs"`
	Status           int       `json:"status" dynamodbav:"status"`
	EstimatedCostUSD float64   `json:"estimatedCostUsd" dynamodbav:"estimatedCostUsd"`
	Timestamp        time.Time `json:"timestamp" dynamodbav:"timestamp"`
	TTL              int64     `json:"-" dynamodbav:"ttl"`
}

// Success reports whether the event's status is in the 2xx range.
func (e Event) Success() bool { return e.Status >= 200 && e.Status < 300 }

// costPerCharacterUSD holds rough list-price per-character rates used to
// estimate spend on providers that bill per character of input text.
// espeak and devicemodel are local/free and carry no rate.
var costPerCharacterUSD = map[string]float64{
	"polly":      0.000004,
	"google":     0.000004,
	"elevenlabs": 0.00003,
}

// EstimateCostUSD returns the list-price estimate for synthesizing
// characterCount characters on provider. Providers with no known rate
// (local engines, mocks) estimate to zero.
func EstimateCostUSD(provider string, characterCount int) float64 {
	rate, ok := costPerCharacterUSD[provider]
	if !ok {
		return 0
	}
	return rate * float64(characterCount)
}

// Histogram maps a dimension value to a count.
type Histogram map[string]int

// Stats is the aggregation result of Stats(since).
type Stats struct {
	Total         int
	Successes     int
	Errors        int
	TotalCostUSD  float64
	ByKey         Histogram
	ByProvider    Histogram
	ByPath        Histogram
	ByStatus      Histogram
}

// Tracker is the usage ledger. A table name of "" disables DynamoDB
// persistence; the in-memory ring is always active.
type Tracker struct {
	mu       sync.Mutex
	ring     []Event
	capacity int

	ddb       *dynamodb.Client
	tableName string
}

// New creates a Tracker with the given ring capacity (DefaultRingSize if 0).
func New(capacity int, ddb *dynamodb.Client, tableName string) *Tracker {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Tracker{
		ring:      make([]Event, 0, capacity),
		capacity:  capacity,
		ddb:       ddb,
		tableName: tableName,
	}
}

// Record appends an event, evicting the oldest when the ring is full. The
// bootstrap admin identity is never persisted, in-memory or durably.
func (t *Tracker) Record(ctx context.Context, e Event) {
	if e.KeyID == keys.BootstrapKeyID {
		return
	}
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	if len(t.ring) >= t.capacity {
		t.ring = t.ring[1:]
	}
	t.ring = append(t.ring, e)
	t.mu.Unlock()

	if t.ddb != nil && t.tableName != "" {
		go t.persist(e)
	}
}

func (t *Tracker) persist(e Event) {
	e.TTL = time.Now().Add(30 * 24 * time.Hour).Unix()
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = t.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &t.tableName,
		Item:      item,
	})
}

// Stats aggregates every in-memory event at or after since (zero time
// means "all").
func (t *Tracker) Stats(since time.Time) Stats {
	t.mu.Lock()
	events := make([]Event, len(t.ring))
	copy(events, t.ring)
	t.mu.Unlock()

	st := Stats{
		ByKey:      Histogram{},
		ByProvider: Histogram{},
		ByPath:     Histogram{},
		ByStatus:   Histogram{},
	}
	for _, e := range events {
		if e.Timestamp.Before(since) {
			continue
		}
		st.Total++
		st.TotalCostUSD += e.EstimatedCostUSD
		if e.Success() {
			st.Successes++
		} else {
			st.Errors++
		}
		st.ByKey[e.KeyID]++
		st.ByProvider[e.Provider]++
		st.ByPath[e.Path]++
		st.ByStatus[statusBucket(e.Status)]++
	}
	return st
}

func statusBucket(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}

// DynamoDB item shape (when persistence is enabled):
//
//	{ id, keyId, provider, path, characterCount, elapsedMs, status, estimatedCostUsd, timestamp, ttl }
//
// ttl is a native DynamoDB TTL attribute giving 30-day expiry without a
// periodic cleanup job.
