package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-lending/lending/internal/errs"
	"github.com/Astemirdum/library-lending/lending/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Catalog interface {
	// FindByISBN returns errs.ErrNotFound when no book has the identifier.
	FindByISBN(ctx context.Context, isbn string) (model.Book, error)
	AddBook(ctx context.Context, book model.Book) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
}

type Ledger interface {
	// WithTx runs fn in a single transaction; nested calls join the outer one.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockISBN serializes lenders of one book until the surrounding transaction ends.
	LockISBN(ctx context.Context, isbn string) error
	Add(ctx context.Context, loan model.Loan) error
	// FindActiveLoanByISBN returns nil, nil when the book is not lent.
	FindActiveLoanByISBN(ctx context.Context, isbn string) (*model.Loan, error)
	ListLoans(ctx context.Context, borrowerName string) ([]model.Loan, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

var (
	_ Catalog = (*repository)(nil)
	_ Ledger  = (*repository)(nil)
)

const (
	booksTableName = `books`
	loansTableName = `loans`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

func (r *repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("tx.Rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	tx, _ := ctx.Value(txKey{}).(*sqlx.Tx)
	return tx
}

func (r *repository) ext(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// storable reports whether Postgres can hold s in a text column. Anything else
// cannot be a catalog key, so lookups answer without a round trip.
func storable(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

func (r *repository) LockISBN(ctx context.Context, isbn string) error {
	if txFromContext(ctx) == nil {
		return errors.New("LockISBN outside of a transaction")
	}
	if !storable(isbn) {
		return nil
	}
	_, err := r.ext(ctx).ExecContext(ctx, `select pg_advisory_xact_lock(hashtext($1))`, isbn)
	return errors.Wrap(err, "advisory lock")
}

func (r *repository) FindByISBN(ctx context.Context, isbn string) (model.Book, error) {
	if !storable(isbn) {
		return model.Book{}, errs.ErrNotFound
	}
	query, args, err := qb.Select("id", "isbn", "title", "author").
		From(booksTableName).
		Where(sq.Eq{"isbn": isbn}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext(ctx), &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pgErrCode(err) == pgerrcode.CharacterNotInRepertoire {
			return model.Book{}, errs.ErrNotFound
		}
		r.log.Error("FindByISBN", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) AddBook(ctx context.Context, book model.Book) (model.Book, error) {
	if !storable(book.ISBN) {
		return model.Book{}, errs.ErrInvalidIdentifier
	}
	query, args, err := qb.Insert(booksTableName).
		Columns("isbn", "title", "author").
		Values(book.ISBN, book.Title, book.Author).
		Suffix("returning id, isbn, title, author").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var res model.Book
	if err := sqlx.GetContext(ctx, r.ext(ctx), &res, query, args...); err != nil {
		if pgErrCode(err) == pgerrcode.UniqueViolation {
			return model.Book{}, errs.ErrBookAlreadyExists
		}
		r.log.Error("AddBook", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return model.Book{}, err
	}
	return res, nil
}

func (r *repository) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	q := qb.Select("id", "isbn", "title", "author").
		From(booksTableName).
		OrderBy("id")
	if page != 0 && size != 0 {
		q = q.Limit(uint64(size)).Offset(uint64((page - 1) * size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	books := make([]model.Book, 0)
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}

	total, err := r.countBooks(ctx)
	if err != nil {
		return model.ListBooks{}, err
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: total,
		},
		Items: books,
	}, nil
}

// countBooks is the catalog size, independent of paging.
func (r *repository) countBooks(ctx context.Context) (int, error) {
	query, args, err := qb.Select("count(*)").From(booksTableName).ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &total, query, args...); err != nil {
		return 0, errors.Wrap(err, "count books")
	}
	return total, nil
}

func (r *repository) Add(ctx context.Context, loan model.Loan) error {
	if !storable(loan.Book.ISBN) {
		return errs.ErrBookNotInInventory
	}
	query, args, err := qb.Insert(loansTableName).
		Columns("loan_uid", "isbn", "borrower_name", "loan_date", "due_date", "status").
		Values(loan.LoanUid, loan.Book.ISBN, loan.BorrowerName, loan.LoanDate, loan.DueDate, loan.Status).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := r.ext(ctx).ExecContext(ctx, query, args...); err != nil {
		switch pgErrCode(err) {
		case pgerrcode.UniqueViolation:
			return errs.ErrAlreadyLoaned
		case pgerrcode.ForeignKeyViolation:
			return errs.ErrBookNotInInventory
		}
		r.log.Error("Add", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return err
	}
	return nil
}

type loanRow struct {
	ID           int        `db:"id"`
	LoanUid      uuid.UUID  `db:"loan_uid"`
	BorrowerName string     `db:"borrower_name"`
	LoanDate     time.Time  `db:"loan_date"`
	DueDate      *time.Time `db:"due_date"`
	Status       string     `db:"status"`
	BookID       int        `db:"book_id"`
	ISBN         string     `db:"isbn"`
	Title        string     `db:"title"`
	Author       string     `db:"author"`
}

func (row loanRow) toModel() model.Loan {
	return model.Loan{
		ID:       row.ID,
		LoanUid:  row.LoanUid,
		LoanDate: row.LoanDate,
		Book: model.Book{
			ID:     row.BookID,
			ISBN:   row.ISBN,
			Title:  row.Title,
			Author: row.Author,
		},
		DueDate:      row.DueDate,
		BorrowerName: row.BorrowerName,
		Status:       model.Status(row.Status),
	}
}

func selectLoans() sq.SelectBuilder {
	return qb.Select("l.id", "l.loan_uid", "l.borrower_name", "l.loan_date", "l.due_date", "l.status",
		"b.id as book_id", "b.isbn", "b.title", "b.author").
		From(loansTableName + " l").
		Join(booksTableName + " b on b.isbn = l.isbn")
}

func (r *repository) FindActiveLoanByISBN(ctx context.Context, isbn string) (*model.Loan, error) {
	if !storable(isbn) {
		return nil, nil
	}
	query, args, err := selectLoans().
		Where(sq.Eq{"l.isbn": isbn}).
		Where(sq.Eq{"l.status": model.StatusActive}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row loanRow
	if err := sqlx.GetContext(ctx, r.ext(ctx), &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) || pgErrCode(err) == pgerrcode.CharacterNotInRepertoire {
			return nil, nil
		}
		r.log.Error("FindActiveLoanByISBN", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return nil, err
	}
	loan := row.toModel()
	return &loan, nil
}

func (r *repository) ListLoans(ctx context.Context, borrowerName string) ([]model.Loan, error) {
	if !storable(borrowerName) {
		return []model.Loan{}, nil
	}
	query, args, err := selectLoans().
		Where(sq.Eq{"l.borrower_name": borrowerName}).
		OrderBy("l.loan_date desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []loanRow
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rows, query, args...); err != nil {
		return nil, err
	}
	loans := make([]model.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toModel())
	}
	return loans, nil
}

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
