package service

//go:generate go run github.com/golang/mock/mockgen -source=queue.go -destination=mocks/mock.go

// Enqueuer publishes lending events; kafka.Enqueuer in production.
type Enqueuer interface {
	Enqueue(topic, key string, v interface{}) error
}
