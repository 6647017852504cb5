package handler

import (
	"net/http"

	"onboarding/internal/delivery/api/response"
	"onboarding/internal/domain/entity"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DocumentHandler serves document submission and review.
type DocumentHandler struct {
	documentUC usecase.DocumentUsecase
}

// NewDocumentHandler is the constructor for DocumentHandler
func NewDocumentHandler(documentUC usecase.DocumentUsecase) *DocumentHandler {
	return &DocumentHandler{documentUC: documentUC}
}

// SubmitDocumentRequest is the body of a document submission.
type SubmitDocumentRequest struct {
	DocumentType string `json:"documentType"`
	FileURL      string `json:"fileUrl"`
}

// ReviewDocumentRequest is the body of a review decision.
type ReviewDocumentRequest struct {
	Status entity.DocumentReviewStatus `json:"status"`
}

// SubmitForMerchant lets an administrator submit a document on a merchant's behalf.
func (h *DocumentHandler) SubmitForMerchant(c echo.Context) error {
	merchantID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	return h.submit(c, merchantID)
}

// SubmitOwn submits a document for the authenticated merchant.
func (h *DocumentHandler) SubmitOwn(c echo.Context) error {
	merchantID, err := actorMerchantID(c)
	if err != nil {
		return err
	}

	return h.submit(c, merchantID)
}

func (h *DocumentHandler) submit(c echo.Context, merchantID uuid.UUID) error {
	var req SubmitDocumentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	out, err := h.documentUC.SubmitDocument(c.Request().Context(), &usecase.SubmitDocumentInput{
		MerchantID:   merchantID,
		DocumentType: req.DocumentType,
		FileURL:      req.FileURL,
	})
	if err != nil {
		return err
	}

	return response.Created(c, out)
}

// Review records the administrator's decision on a document.
func (h *DocumentHandler) Review(c echo.Context) error {
	documentID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	var req ReviewDocumentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	out, err := h.documentUC.ReviewDocument(c.Request().Context(), &usecase.ReviewDocumentInput{
		DocumentID: documentID,
		Status:     req.Status,
		Reviewer:   actorSubject(c),
	})
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, out)
}

// ListForMerchant lists a merchant's documents for an administrator.
func (h *DocumentHandler) ListForMerchant(c echo.Context) error {
	merchantID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}

	return h.list(c, merchantID)
}

// ListOwn lists the authenticated merchant's documents.
func (h *DocumentHandler) ListOwn(c echo.Context) error {
	merchantID, err := actorMerchantID(c)
	if err != nil {
		return err
	}

	return h.list(c, merchantID)
}

func (h *DocumentHandler) list(c echo.Context, merchantID uuid.UUID) error {
	documents, err := h.documentUC.ListDocuments(c.Request().Context(), merchantID)
	if err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, documents)
}
