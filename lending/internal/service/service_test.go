package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-lending/lending/internal/clock"
	"github.com/Astemirdum/library-lending/lending/internal/errs"
	"github.com/Astemirdum/library-lending/lending/internal/model"
	repo_mocks "github.com/Astemirdum/library-lending/lending/internal/repository/mocks"
	"github.com/Astemirdum/library-lending/lending/internal/service"
	service_mocks "github.com/Astemirdum/library-lending/lending/internal/service/mocks"
	"github.com/Astemirdum/library-lending/pkg/kafka"
)

type mocks struct {
	catalog *repo_mocks.MockCatalog
	ledger  *repo_mocks.MockLedger
	queue   *service_mocks.MockEnqueuer
}

func runInTx(m mocks) {
	m.ledger.EXPECT().
		WithTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func TestService_AuthorizeLoan(t *testing.T) {
	t.Parallel()

	now := time.Date(2019, time.July, 1, 10, 30, 0, 0, time.UTC)
	errDB := errors.New("db internal")

	type input struct {
		isbn     string
		borrower string
	}
	type mockBehavior func(t *testing.T, m mocks, in input)

	tests := []struct {
		name         string
		input        input
		mockBehavior mockBehavior
		wantErr      error
		wantDue      *time.Time
	}{
		{
			name:         "err. empty isbn, no lookups",
			input:        input{isbn: "", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {},
			wantErr:      errs.ErrInvalidIdentifier,
		},
		{
			name:         "err. palindrome, no lookups",
			input:        input{isbn: "1221", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {},
			wantErr:      errs.ErrPalindromicIdentifier,
		},
		{
			name:         "err. case-insensitive palindrome",
			input:        input{isbn: "AbcBA", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {},
			wantErr:      errs.ErrPalindromicIdentifier,
		},
		{
			name:  "err. not in inventory",
			input: input{isbn: "XYZ", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrBookNotInInventory,
		},
		{
			name:  "err. already loaned",
			input: input{isbn: "99991", borrower: "Arya Stark"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{ISBN: in.isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), in.isbn).Return(&model.Loan{BorrowerName: "Jhon Snow"}, nil)
			},
			wantErr: errs.ErrAlreadyLoaned,
		},
		{
			name:  "err. catalog failure propagates",
			input: input{isbn: "99991", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{}, errDB)
			},
			wantErr: errDB,
		},
		{
			name:  "err. lock failure propagates",
			input: input{isbn: "99991", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(errDB)
			},
			wantErr: errDB,
		},
		{
			name:  "err. ledger write failure propagates",
			input: input{isbn: "99991", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{ISBN: in.isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), in.isbn).Return(nil, nil)
				m.ledger.EXPECT().Add(gomock.Any(), gomock.Any()).Return(errDB)
			},
			wantErr: errDB,
		},
		{
			name:  "ok. due date assigned",
			input: input{isbn: "99991", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				book := model.Book{ID: 1, ISBN: in.isbn, Title: "Cronica de una muerte anunciada"}
				due := time.Date(2019, time.July, 16, 0, 0, 0, 0, time.UTC)
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(book, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), in.isbn).Return(nil, nil)
				m.ledger.EXPECT().Add(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, loan model.Loan) error {
						require.Equal(t, book, loan.Book)
						require.Equal(t, in.borrower, loan.BorrowerName)
						require.Equal(t, now, loan.LoanDate)
						require.Equal(t, model.StatusActive, loan.Status)
						require.NotEqual(t, uuid.Nil, loan.LoanUid)
						require.NotNil(t, loan.DueDate)
						require.True(t, due.Equal(*loan.DueDate))
						return nil
					})
				m.queue.EXPECT().Enqueue(kafka.LoanTopic, in.isbn, gomock.Any()).Return(nil)
			},
			wantDue: ptr(time.Date(2019, time.July, 16, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:  "ok. open-ended loan",
			input: input{isbn: "123", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{ISBN: in.isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), in.isbn).Return(nil, nil)
				m.ledger.EXPECT().Add(gomock.Any(), gomock.Any()).Return(nil)
				m.queue.EXPECT().Enqueue(kafka.LoanTopic, in.isbn, gomock.Any()).Return(nil)
			},
		},
		{
			name:  "ok. enqueue failure is not returned",
			input: input{isbn: "123", borrower: "Jhon Snow"},
			mockBehavior: func(t *testing.T, m mocks, in input) {
				runInTx(m)
				m.ledger.EXPECT().LockISBN(gomock.Any(), in.isbn).Return(nil)
				m.catalog.EXPECT().FindByISBN(gomock.Any(), in.isbn).Return(model.Book{ISBN: in.isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), in.isbn).Return(nil, nil)
				m.ledger.EXPECT().Add(gomock.Any(), gomock.Any()).Return(nil)
				m.queue.EXPECT().Enqueue(kafka.LoanTopic, in.isbn, gomock.Any()).Return(errors.New("broker down"))
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()

			m := mocks{
				catalog: repo_mocks.NewMockCatalog(c),
				ledger:  repo_mocks.NewMockLedger(c),
				queue:   service_mocks.NewMockEnqueuer(c),
			}
			tt.mockBehavior(t, m, tt.input)

			svc := service.NewService(m.catalog, m.ledger, m.queue, zap.NewNop(),
				service.WithClock(clock.NewFixed(now)),
				service.WithLocation(time.UTC),
			)
			loan, err := svc.AuthorizeLoan(context.Background(), tt.input.isbn, tt.input.borrower)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Equal(t, model.Loan{}, loan)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.input.isbn, loan.Book.ISBN)
			require.Equal(t, tt.input.borrower, loan.BorrowerName)
			if tt.wantDue == nil {
				require.Nil(t, loan.DueDate)
				return
			}
			require.NotNil(t, loan.DueDate)
			require.True(t, tt.wantDue.Equal(*loan.DueDate))
		})
	}
}

func TestService_IsLoaned(t *testing.T) {
	t.Parallel()

	errDB := errors.New("db internal")
	tests := []struct {
		name         string
		isbn         string
		mockBehavior func(m mocks, isbn string)
		want         bool
		wantErr      error
	}{
		{
			name: "loaned",
			isbn: "ABCD",
			mockBehavior: func(m mocks, isbn string) {
				m.catalog.EXPECT().FindByISBN(gomock.Any(), isbn).Return(model.Book{ISBN: isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), isbn).Return(&model.Loan{}, nil)
			},
			want: true,
		},
		{
			name: "not loaned",
			isbn: "ABCD",
			mockBehavior: func(m mocks, isbn string) {
				m.catalog.EXPECT().FindByISBN(gomock.Any(), isbn).Return(model.Book{ISBN: isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), isbn).Return(nil, nil)
			},
			want: false,
		},
		{
			name: "err. unknown book",
			isbn: "XYZ",
			mockBehavior: func(m mocks, isbn string) {
				m.catalog.EXPECT().FindByISBN(gomock.Any(), isbn).Return(model.Book{}, errs.ErrNotFound)
			},
			wantErr: errs.ErrBookNotInInventory,
		},
		{
			name: "err. ledger failure propagates",
			isbn: "ABCD",
			mockBehavior: func(m mocks, isbn string) {
				m.catalog.EXPECT().FindByISBN(gomock.Any(), isbn).Return(model.Book{ISBN: isbn}, nil)
				m.ledger.EXPECT().FindActiveLoanByISBN(gomock.Any(), isbn).Return(nil, errDB)
			},
			wantErr: errDB,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()

			m := mocks{
				catalog: repo_mocks.NewMockCatalog(c),
				ledger:  repo_mocks.NewMockLedger(c),
				queue:   service_mocks.NewMockEnqueuer(c),
			}
			tt.mockBehavior(m, tt.isbn)

			svc := service.NewService(m.catalog, m.ledger, m.queue, zap.NewNop())
			loaned, err := svc.IsLoaned(context.Background(), tt.isbn)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, loaned)
		})
	}
}

func TestService_AddBook(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()

	catalog := repo_mocks.NewMockCatalog(c)
	svc := service.NewService(catalog, repo_mocks.NewMockLedger(c), service_mocks.NewMockEnqueuer(c), zap.NewNop())

	_, err := svc.AddBook(context.Background(), model.Book{Title: "Candelaria"})
	require.ErrorIs(t, err, errs.ErrInvalidIdentifier)

	book := model.Book{ISBN: "ABCD", Title: "Candelaria"}
	catalog.EXPECT().AddBook(gomock.Any(), book).Return(model.Book{ID: 7, ISBN: "ABCD", Title: "Candelaria"}, nil)
	got, err := svc.AddBook(context.Background(), book)
	require.NoError(t, err)
	require.Equal(t, 7, got.ID)
}

func ptr(t time.Time) *time.Time { return &t }
