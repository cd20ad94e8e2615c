package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsweep/internal/gmail"
	"mailsweep/internal/model"
	"mailsweep/internal/repository"
	"mailsweep/internal/vault"
)

// AccountHandler owns the OAuth connect flow and account management.
type AccountHandler struct {
	accounts *repository.AccountRepository
	client   *gmail.Client
	vault    *vault.Vault
	logger   *zap.Logger
}

func NewAccountHandler(accounts *repository.AccountRepository, client *gmail.Client, v *vault.Vault, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, client: client, vault: v, logger: logger}
}

// AuthURL returns the Google consent URL. The user id rides along as OAuth
// state so the callback can attribute the grant.
func (h *AccountHandler) AuthURL(c *gin.Context) {
	userID := currentUserID(c)
	c.JSON(http.StatusOK, gin.H{"url": h.client.AuthCodeURL(userID)})
}

// Callback exchanges the authorization code, encrypts the grant and stores
// the account. The first connected account becomes the user's primary.
func (h *AccountHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	userID := c.Query("state")
	if code == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state required"})
		return
	}

	ctx := c.Request.Context()
	grant, err := h.client.ExchangeCode(ctx, code)
	if err != nil {
		h.logger.Error("OAuth code exchange failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}

	email, err := h.client.Profile(ctx, grant.AccessToken)
	if err != nil {
		h.logger.Error("Failed to fetch mailbox profile", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch profile"})
		return
	}

	accessEnc, err := h.vault.Encrypt(grant.AccessToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credentials"})
		return
	}
	refreshEnc := ""
	if grant.RefreshToken != "" {
		if refreshEnc, err = h.vault.Encrypt(grant.RefreshToken); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credentials"})
			return
		}
	}

	hasConnected, err := h.accounts.HasConnected(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store account"})
		return
	}

	expiresAt := grant.ExpiresAt(time.Now())
	account := &model.MailboxAccount{
		UserID:          userID,
		Email:           email,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		TokenExpiresAt:  &expiresAt,
		IsPrimary:       !hasConnected,
	}
	id, err := h.accounts.Upsert(ctx, account)
	if err != nil {
		h.logger.Error("Failed to upsert mailbox account",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store account"})
		return
	}

	h.logger.Info("Mailbox account connected",
		zap.String("user_id", userID),
		zap.String("account_id", id),
		zap.String("email", email),
	)
	c.JSON(http.StatusOK, gin.H{"id": id, "email": email})
}

type accountView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	IsPrimary bool   `json:"isPrimary"`
	Connected bool   `json:"connected"`
}

func (h *AccountHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	accounts, err := h.accounts.ListConnected(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch accounts"})
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, accountView{
			ID:        a.ID,
			Email:     a.Email,
			IsPrimary: a.IsPrimary,
			Connected: a.IsConnected(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

func (h *AccountHandler) Disconnect(c *gin.Context) {
	userID := currentUserID(c)
	accountID := c.Param("id")

	if err := h.accounts.Delete(c.Request.Context(), userID, accountID); err != nil {
		h.logger.Error("Failed to disconnect account",
			zap.String("user_id", userID),
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
