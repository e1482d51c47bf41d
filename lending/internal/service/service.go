package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-lending/lending/internal/clock"
	"github.com/Astemirdum/library-lending/lending/internal/duedate"
	"github.com/Astemirdum/library-lending/lending/internal/errs"
	"github.com/Astemirdum/library-lending/lending/internal/isbn"
	"github.com/Astemirdum/library-lending/lending/internal/model"
	"github.com/Astemirdum/library-lending/lending/internal/repository"
	"github.com/Astemirdum/library-lending/pkg/kafka"
)

type Service struct {
	log     *zap.Logger
	catalog repository.Catalog
	ledger  repository.Ledger
	queue   Enqueuer
	tracer  trace.Tracer

	clock     clock.Clock
	location  *time.Location
	loanTopic string
}

type Option func(*Service)

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation sets the zone in which "today" and the due date's midnight are taken.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithLoanTopic(topic string) Option {
	return func(s *Service) {
		if topic != "" {
			s.loanTopic = topic
		}
	}
}

func NewService(catalog repository.Catalog, ledger repository.Ledger, queue Enqueuer, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:       log.Named("service"),
		catalog:   catalog,
		ledger:    ledger,
		queue:     queue,
		tracer:    otel.Tracer("library-lending/service"),
		clock:     clock.NewSystem(),
		location:  time.Local,
		loanTopic: kafka.LoanTopic,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthorizeLoan lends the book identified by id to borrowerName. The identifier
// rules run before any I/O; the availability check and the insert share one
// transaction holding a per-book lock.
func (s *Service) AuthorizeLoan(ctx context.Context, id, borrowerName string) (model.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "Service.AuthorizeLoan",
		trace.WithAttributes(attribute.String("isbn", id)))
	defer span.End()

	loan, err := s.authorizeLoan(ctx, id, borrowerName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Loan{}, err
	}

	s.publish(loan)
	return loan, nil
}

func (s *Service) authorizeLoan(ctx context.Context, id, borrowerName string) (model.Loan, error) {
	if !isbn.Valid(id) {
		return model.Loan{}, errs.ErrInvalidIdentifier
	}
	if isbn.IsPalindrome(id) {
		return model.Loan{}, errs.ErrPalindromicIdentifier
	}

	var loan model.Loan
	err := s.ledger.WithTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.LockISBN(ctx, id); err != nil {
			return err
		}
		book, loaned, err := s.isLoaned(ctx, id)
		if err != nil {
			return err
		}
		if loaned {
			return errs.ErrAlreadyLoaned
		}

		now := s.clock.Now().In(s.location)
		loan = model.Loan{
			LoanUid:      uuid.New(),
			LoanDate:     now,
			Book:         book,
			DueDate:      duedate.Calculate(id, now),
			BorrowerName: borrowerName,
			Status:       model.StatusActive,
		}
		return s.ledger.Add(ctx, loan)
	})
	if err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// IsLoaned reports whether the book has an active loan. Unknown identifiers fail
// with errs.ErrBookNotInInventory rather than answering false.
func (s *Service) IsLoaned(ctx context.Context, id string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "Service.IsLoaned",
		trace.WithAttributes(attribute.String("isbn", id)))
	defer span.End()

	_, loaned, err := s.isLoaned(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("loaned", loaned))
	return loaned, nil
}

func (s *Service) isLoaned(ctx context.Context, id string) (model.Book, bool, error) {
	book, err := s.catalog.FindByISBN(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Book{}, false, errs.ErrBookNotInInventory
		}
		return model.Book{}, false, err
	}

	active, err := s.ledger.FindActiveLoanByISBN(ctx, book.ISBN)
	if err != nil {
		return model.Book{}, false, err
	}
	return book, active != nil, nil
}

func (s *Service) publish(loan model.Loan) {
	event := kafka.EventLoan{
		Timestamp:    s.clock.Now(),
		EventType:    kafka.EventTypeLoanAuthorized,
		LoanUid:      loan.LoanUid,
		ISBN:         loan.Book.ISBN,
		BorrowerName: loan.BorrowerName,
		LoanDate:     loan.LoanDate,
		DueDate:      loan.DueDate,
	}
	if err := s.queue.Enqueue(s.loanTopic, loan.Book.ISBN, event); err != nil {
		s.log.Error("queue.Enqueue", zap.String("loanUid", loan.LoanUid.String()), zap.Error(err))
	}
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.catalog.FindByISBN(ctx, id)
}

func (s *Service) AddBook(ctx context.Context, book model.Book) (model.Book, error) {
	if !isbn.Valid(book.ISBN) {
		return model.Book{}, errs.ErrInvalidIdentifier
	}
	return s.catalog.AddBook(ctx, book)
}

func (s *Service) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	return s.catalog.ListBooks(ctx, page, size)
}

func (s *Service) GetLoans(ctx context.Context, borrowerName string) ([]model.Loan, error) {
	return s.ledger.ListLoans(ctx, borrowerName)
}
