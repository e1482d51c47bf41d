package kafka

import (
	"encoding/json"
	"time"

	"github.com/Astemirdum/library-lending/pkg/circuit_breaker"
	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

const (
	LoanTopic = "loans"

	EventTypeLoanAuthorized = "LOAN_AUTHORIZED"
)

type Config struct {
	Addrs     []string `envconfig:"KAFKA_ADDRS"`
	LoanTopic string   `envconfig:"KAFKA_LOAN_TOPIC" default:"loans"`
	Breaker   circuit_breaker.Config
}

// EventLoan is published on LoanTopic once a loan is persisted.
type EventLoan struct {
	Timestamp    time.Time  `json:"timestamp"`
	EventType    string     `json:"eventType"`
	LoanUid      uuid.UUID  `json:"loanUid"`
	ISBN         string     `json:"isbn"`
	BorrowerName string     `json:"borrowerName"`
	LoanDate     time.Time  `json:"loanDate"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Partitioner = sarama.NewHashPartitioner

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

type Enqueuer struct {
	producer sarama.SyncProducer
	cb       circuit_breaker.CircuitBreaker
}

func NewEnqueuer(producer sarama.SyncProducer, cb circuit_breaker.CircuitBreaker) *Enqueuer {
	return &Enqueuer{
		producer: producer,
		cb:       cb,
	}
}

// Enqueue sends v as JSON keyed by key, so events of one book land on one partition.
func (q *Enqueuer) Enqueue(topic, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	return q.cb.Call(func() error {
		_, _, err := q.producer.SendMessage(msg)
		return err
	})
}

func (q *Enqueuer) Close() error {
	return q.producer.Close()
}

// NopEnqueuer drops every message; used when no brokers are configured.
type NopEnqueuer struct{}

func (NopEnqueuer) Enqueue(string, string, interface{}) error { return nil }

func (NopEnqueuer) Close() error { return nil }
