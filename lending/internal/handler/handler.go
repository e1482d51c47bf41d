package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-lending/lending/internal/errs"
	"github.com/Astemirdum/library-lending/lending/internal/model"
	_ "github.com/Astemirdum/library-lending/lending/swagger"
	md "github.com/Astemirdum/library-lending/pkg/middleware"
	"github.com/Astemirdum/library-lending/pkg/validate"
)

type Handler struct {
	lendingSvc LendingService
	log        *zap.Logger
}

func New(lendingSvc LendingService, log *zap.Logger) *Handler {
	return &Handler{
		lendingSvc: lendingSvc,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPost},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
	)

	api.POST("/loans", h.AuthorizeLoan)
	api.GET("/loans", h.GetLoans)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.AddBook)
	api.GET("/books/:isbn", h.GetBook)
	api.GET("/books/:isbn/loaned", h.IsLoaned)

	return e
}

// Health
// @Summary     Liveness probe
// @Tags        manage
// @Produce     plain
// @Success     200 {string} string "OK"
// @Router      /manage/health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// AuthorizeLoan
// @Summary     Authorize a loan
// @Description Lends a book to the borrower; borrowerName falls back to the X-User-Name header.
// @Tags        loans
// @Accept      json
// @Produce     json
// @Param       X-User-Name header   string                     false "borrower name"
// @Param       request     body     model.AuthorizeLoanRequest true  "loan request"
// @Success     201         {object} model.Loan
// @Failure     400         {object} echo.HTTPError
// @Failure     404         {object} echo.HTTPError
// @Failure     409         {object} echo.HTTPError
// @Failure     500         {object} echo.HTTPError
// @Router      /api/v1/loans [post]
func (h *Handler) AuthorizeLoan(c echo.Context) error {
	var req model.AuthorizeLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.BorrowerName == "" {
		req.BorrowerName = c.Request().Header.Get(md.XUserNameHeader)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	loan, err := h.lendingSvc.AuthorizeLoan(c.Request().Context(), req.ISBN, req.BorrowerName)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, loan)
}

// GetLoans
// @Summary     List loans of a borrower
// @Tags        loans
// @Produce     json
// @Param       borrower    query    string false "borrower name"
// @Param       X-User-Name header   string false "borrower name when the query is empty"
// @Success     200         {array}  model.Loan
// @Failure     400         {object} echo.HTTPError
// @Router      /api/v1/loans [get]
func (h *Handler) GetLoans(c echo.Context) error {
	borrower := c.QueryParam("borrower")
	if borrower == "" {
		borrower = c.Request().Header.Get(md.XUserNameHeader)
	}
	if borrower == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "borrower is required")
	}
	loans, err := h.lendingSvc.GetLoans(c.Request().Context(), borrower)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, loans)
}

// IsLoaned
// @Summary     Check whether a book is lent
// @Tags        books
// @Produce     json
// @Param       isbn path     string true "book identifier"
// @Success     200  {object} model.LoanedResponse
// @Failure     404  {object} echo.HTTPError
// @Router      /api/v1/books/{isbn}/loaned [get]
func (h *Handler) IsLoaned(c echo.Context) error {
	isbn := c.Param("isbn")
	loaned, err := h.lendingSvc.IsLoaned(c.Request().Context(), isbn)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, model.LoanedResponse{ISBN: isbn, Loaned: loaned})
}

// GetBook
// @Summary     Get a book
// @Tags        books
// @Produce     json
// @Param       isbn path     string true "book identifier"
// @Success     200  {object} model.Book
// @Failure     404  {object} echo.HTTPError
// @Router      /api/v1/books/{isbn} [get]
func (h *Handler) GetBook(c echo.Context) error {
	book, err := h.lendingSvc.GetBook(c.Request().Context(), c.Param("isbn"))
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, book)
}

// AddBook
// @Summary     Add a book to the catalog
// @Tags        books
// @Accept      json
// @Produce     json
// @Param       request body     model.Book true "book"
// @Success     201     {object} model.Book
// @Failure     400     {object} echo.HTTPError
// @Failure     409     {object} echo.HTTPError
// @Router      /api/v1/books [post]
func (h *Handler) AddBook(c echo.Context) error {
	var req model.Book
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	book, err := h.lendingSvc.AddBook(c.Request().Context(), req)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusCreated, book)
}

// ListBooks
// @Summary     List the catalog
// @Tags        books
// @Produce     json
// @Param       page query    int false "page, from 1"
// @Param       size query    int false "page size"
// @Success     200  {object} model.ListBooks
// @Failure     400  {object} echo.HTTPError
// @Router      /api/v1/books [get]
func (h *Handler) ListBooks(c echo.Context) error {
	var (
		err  error
		page int
		size int
	)
	if pageParam := c.QueryParam("page"); pageParam != "" {
		if page, err = strconv.Atoi(pageParam); err != nil || page < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "page is invalid")
		}
	}
	if sizeParam := c.QueryParam("size"); sizeParam != "" {
		if size, err = strconv.Atoi(sizeParam); err != nil || size < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "size is invalid")
		}
	}
	books, err := h.lendingSvc.ListBooks(c.Request().Context(), page, size)
	if err != nil {
		return h.httpError(err)
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) httpError(err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidIdentifier), errors.Is(err, errs.ErrPalindromicIdentifier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrBookNotInInventory), errors.Is(err, errs.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrAlreadyLoaned), errors.Is(err, errs.ErrBookAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	h.log.Error("internal", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
