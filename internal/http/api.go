package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"savings-ledger/internal/auth"
	"savings-ledger/internal/cache"
	"savings-ledger/internal/domain"
	"savings-ledger/internal/service"
)

const balanceCacheTTL = 30 * time.Second

// Handler wires HTTP routes to domain services.
type Handler struct {
	accounts   service.AccountService
	ledger     service.LedgerService
	audit      service.AuditService
	statements service.StatementService
	rdb        *redis.Client
	jwtSecret  string
	tokenTTL   time.Duration
	logger     *logrus.Logger
}

func NewHandler(
	accounts service.AccountService,
	ledger service.LedgerService,
	audit service.AuditService,
	statements service.StatementService,
	rdb *redis.Client,
	jwtSecret string,
	tokenTTL time.Duration,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		accounts:   accounts,
		ledger:     ledger,
		audit:      audit,
		statements: statements,
		rdb:        rdb,
		jwtSecret:  jwtSecret,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.POST("/register", h.register)
		api.POST("/login", h.login)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})

		authed := api.Group("")
		authed.Use(h.authMiddleware())
		{
			authed.GET("/balance", h.balance)
			authed.POST("/deposits", h.requestDeposit)
			authed.POST("/withdrawals", h.requestWithdraw)
			authed.GET("/transactions", h.history)
		}

		admin := api.Group("/admin")
		admin.Use(h.authMiddleware())
		{
			admin.GET("/pending", h.pendingQueue)
			admin.POST("/transactions/:id/decision", h.decide)
			admin.POST("/statements", h.exportStatement)
			admin.GET("/statements", h.listStatements)
		}
	}
}

func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}
		claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), h.jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set("session", domain.Session{
			UserID:   claims.UserID,
			Username: claims.Username,
			IsAdmin:  claims.IsAdmin,
		})
		c.Next()
	}
}

func sessionFrom(c *gin.Context) domain.Session {
	return c.MustGet("session").(domain.Session)
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token   string `json:"token"`
	IsAdmin bool   `json:"is_admin"`
	Balance string `json:"balance"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	session, err := h.accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := auth.GenerateToken(session.UserID, session.Username, session.IsAdmin, h.jwtSecret, h.tokenTTL)
	if err != nil {
		h.logger.WithField("user_id", session.UserID).Errorf("sign token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:   token,
		IsAdmin: session.IsAdmin,
		Balance: session.Balance.String(),
	})
}

func (h *Handler) balance(c *gin.Context) {
	session := sessionFrom(c)
	ctx := c.Request.Context()

	cacheKey := balanceKey(session.UserID)
	if h.rdb != nil {
		var cached string
		if found, err := cache.Get(ctx, h.rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"balance": cached, "cached": true})
			return
		}
	}

	balance, err := h.accounts.Balance(ctx, session.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.rdb != nil {
		_ = cache.Set(ctx, h.rdb, cacheKey, balance.String(), balanceCacheTTL)
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance.String(), "cached": false})
}

type amountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) requestDeposit(c *gin.Context) {
	h.requestTransaction(c, h.ledger.RequestDeposit)
}

func (h *Handler) requestWithdraw(c *gin.Context) {
	h.requestTransaction(c, h.ledger.RequestWithdraw)
}

func (h *Handler) requestTransaction(c *gin.Context, request func(context.Context, domain.Session, decimal.Decimal) (*domain.Transaction, error)) {
	session := sessionFrom(c)

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	tx, err := request(c.Request.Context(), session, amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":        session.UserID,
		"transaction_id": tx.ID,
		"type":           tx.Type,
		"amount":         tx.Amount.String(),
	}).Info("transaction requested")
	c.JSON(http.StatusAccepted, transactionToResponse(*tx))
}

func (h *Handler) history(c *gin.Context) {
	session := sessionFrom(c)

	records, err := h.audit.History(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

func (h *Handler) pendingQueue(c *gin.Context) {
	session := sessionFrom(c)

	records, err := h.audit.PendingQueue(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, recordsToResponse(records))
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
}

func (h *Handler) decide(c *gin.Context) {
	session := sessionFrom(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision is required"})
		return
	}
	decision := domain.Decision(req.Decision)
	if decision != domain.DecisionApprove && decision != domain.DecisionReject {
		c.JSON(http.StatusBadRequest, gin.H{"error": "decision must be approve or reject"})
		return
	}

	tx, err := h.ledger.Decide(c.Request.Context(), session, id, decision)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"decision":       decision,
		"verified_by":    session.UserID,
	}).Info("transaction decided")

	if h.rdb != nil {
		_ = cache.Delete(c.Request.Context(), h.rdb, balanceKey(tx.UserID))
	}
	c.JSON(http.StatusOK, transactionToResponse(*tx))
}

func (h *Handler) exportStatement(c *gin.Context) {
	session := sessionFrom(c)

	location, err := h.statements.Export(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.logger.WithField("location", location).Info("statement exported")
	c.JSON(http.StatusCreated, gin.H{"location": location})
}

func (h *Handler) listStatements(c *gin.Context) {
	session := sessionFrom(c)

	objects, err := h.statements.ListExports(c.Request.Context(), session)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]statementResponse, len(objects))
	for i, obj := range objects {
		resp[i] = statementResponse{Key: obj.Key, Size: obj.Size}
		if obj.LastModified != nil && !obj.LastModified.IsZero() {
			v := obj.LastModified.Format(time.RFC3339)
			resp[i].LastModified = &v
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrDuplicateUsername), errors.Is(err, domain.ErrAlreadyDecided):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrTransactionNotFound), errors.Is(err, domain.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, service.ErrArchiveNotConfigured):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		h.logger.Errorf("request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:user:%d", userID)
}

type transactionResponse struct {
	ID         int64   `json:"id"`
	UserID     int64   `json:"user_id"`
	Type       string  `json:"type"`
	Amount     string  `json:"amount"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	VerifiedBy *int64  `json:"verified_by,omitempty"`
	VerifiedAt *string `json:"verified_at,omitempty"`
}

type recordResponse struct {
	transactionResponse
	Username         string  `json:"username"`
	VerifierUsername *string `json:"verifier_username,omitempty"`
}

type statementResponse struct {
	Key          string  `json:"key"`
	Size         int64   `json:"size"`
	LastModified *string `json:"last_modified,omitempty"`
}

func transactionToResponse(tx domain.Transaction) transactionResponse {
	resp := transactionResponse{
		ID:         tx.ID,
		UserID:     tx.UserID,
		Type:       string(tx.Type),
		Amount:     tx.Amount.String(),
		Status:     string(tx.Status),
		CreatedAt:  tx.CreatedAt.UTC().Format(time.RFC3339),
		VerifiedBy: tx.VerifiedBy,
	}
	if tx.VerifiedAt != nil {
		v := tx.VerifiedAt.UTC().Format(time.RFC3339)
		resp.VerifiedAt = &v
	}
	return resp
}

func recordsToResponse(records []domain.TransactionRecord) []recordResponse {
	resp := make([]recordResponse, len(records))
	for i, rec := range records {
		resp[i] = recordResponse{
			transactionResponse: transactionToResponse(rec.Transaction),
			Username:            rec.Username,
			VerifierUsername:    rec.VerifierUsername,
		}
	}
	return resp
}
