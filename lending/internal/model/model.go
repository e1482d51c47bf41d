package model

import (
	"time"

	"github.com/google/uuid"
)

type Book struct {
	ID     int    `json:"-" db:"id"`
	ISBN   string `json:"isbn" db:"isbn" validate:"required,max=64"`
	Title  string `json:"title" db:"title" validate:"required,max=255"`
	Author string `json:"author" db:"author" validate:"max=255"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type Status string

const (
	StatusActive Status = "ACTIVE"
)

type Loan struct {
	ID       int       `json:"-"`
	LoanUid  uuid.UUID `json:"loanUid"`
	LoanDate time.Time `json:"loanDate"`
	Book     Book      `json:"book"`
	// DueDate is nil when the loan has no fixed return deadline.
	DueDate      *time.Time `json:"dueDate,omitempty"`
	BorrowerName string     `json:"borrowerName"`
	Status       Status     `json:"status"`
}

type AuthorizeLoanRequest struct {
	ISBN         string `json:"isbn"`
	BorrowerName string `json:"borrowerName" validate:"max=255"`
}

type LoanedResponse struct {
	ISBN   string `json:"isbn"`
	Loaned bool   `json:"loaned"`
}
