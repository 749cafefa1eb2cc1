package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/massargual/portfolio-api/internal/model"
	"github.com/massargual/portfolio-api/internal/repository"
)

// maxContactMessageLength は問い合わせ本文の最大文字数。
const maxContactMessageLength = 4000

// ContactHandler は問い合わせフォームのハンドラー。
// 送信は公開、閲覧は管理者のみ。
type ContactHandler struct {
	repo repository.ContactRepository
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(repo repository.ContactRepository) *ContactHandler {
	return &ContactHandler{repo: repo}
}

// contactRequest は問い合わせ送信リクエストのボディ。
type contactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// contactResponse は問い合わせメッセージのAPIレスポンス。管理画面用。
type contactResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// Submit は問い合わせメッセージの送信を処理する。
// POST /api/contact
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	message := strings.TrimSpace(req.Message)

	if name == "" || email == "" || message == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Name, email, and message are required."))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Email address is not valid."))
		return
	}
	if len([]rune(message)) > maxContactMessageLength {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError(fmt.Sprintf("Message must be at most %d characters.", maxContactMessageLength)))
		return
	}

	msg := &model.ContactMessage{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.Create(r.Context(), msg); err != nil {
		slog.Error("failed to store contact message", slog.String("error", err.Error()))
		handleServiceError(w, model.NewStoreError("failed to store the message"))
		return
	}

	slog.Info("contact message received", slog.String("message_id", msg.ID))
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Thanks for reaching out. I'll get back to you soon.",
	})
}

// List は新着順の問い合わせメッセージを返す。
// RequireUserミドルウェアの背後に配置される。
// GET /admin/api/contact
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}

	messages, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, model.NewStoreError(fmt.Sprintf("failed to list messages: %v", err)))
		return
	}

	out := make([]contactResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, contactResponse{
			ID:        m.ID,
			Name:      m.Name,
			Email:     m.Email,
			Message:   m.Message,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string][]contactResponse{"messages": out})
}
