package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/quorumworks/logbook/internal/api"
	"github.com/quorumworks/logbook/internal/domain"
	"github.com/quorumworks/logbook/internal/service"
)

type WebhookHandler struct {
	svc IngestService
}

func NewWebhookHandler(svc IngestService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// InboundEmailRequest is the Postmark inbound webhook payload, reduced to
// the fields we consume.
type InboundEmailRequest struct {
	From        string `json:"From"`
	FromName    string `json:"FromName"`
	To          string `json:"To"`
	Subject     string `json:"Subject"`
	TextBody    string `json:"TextBody"`
	Attachments []struct {
		Name          string `json:"Name"`
		ContentType   string `json:"ContentType"`
		ContentLength int64  `json:"ContentLength"`
		Content       string `json:"Content"` // base64
	} `json:"Attachments"`
}

type InboundEmailResponse struct {
	DocumentsCreated int      `json:"documents_created"`
	DocumentIDs      []string `json:"document_ids"`
	Sender           string   `json:"sender"`
	PrivacyLevel     string   `json:"privacy_level"`
}

// ReceiveEmail ingests one inbound email. The receiving address decides
// the privacy level: anything containing "private" lands as private.
func (h *WebhookHandler) ReceiveEmail(w http.ResponseWriter, r *http.Request) {
	var req InboundEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	channel := domain.SourceEmailShared
	if strings.Contains(strings.ToLower(req.To), "private") {
		channel = domain.SourceEmailPrivate
	}

	input := service.IngestEmailInput{
		From:     req.From,
		Subject:  req.Subject,
		BodyText: req.TextBody,
		Channel:  channel,
	}
	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			log.Printf("Skipping attachment %s: undecodable content: %v", att.Name, err)
			continue
		}
		input.Attachments = append(input.Attachments, service.EmailAttachment{
			Filename: att.Name,
			MimeType: att.ContentType,
			Content:  content,
		})
	}

	docs, err := h.svc.IngestEmail(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := InboundEmailResponse{
		DocumentsCreated: len(docs),
		DocumentIDs:      make([]string, 0, len(docs)),
		Sender:           req.From,
		PrivacyLevel:     string(docs[0].PrivacyLevel),
	}
	for _, doc := range docs {
		resp.DocumentIDs = append(resp.DocumentIDs, doc.ID)
	}

	api.Success(w, http.StatusOK, resp)
}
