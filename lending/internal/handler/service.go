package handler

import (
	"context"

	"github.com/Astemirdum/library-lending/lending/internal/model"
	"github.com/Astemirdum/library-lending/lending/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	AuthorizeLoan(ctx context.Context, isbn, borrowerName string) (model.Loan, error)
	IsLoaned(ctx context.Context, isbn string) (bool, error)
	GetLoans(ctx context.Context, borrowerName string) ([]model.Loan, error)
	GetBook(ctx context.Context, isbn string) (model.Book, error)
	AddBook(ctx context.Context, book model.Book) (model.Book, error)
	ListBooks(ctx context.Context, page, size int) (model.ListBooks, error)
}

var _ LendingService = (*service.Service)(nil)
