package impl

import (
	"context"
	"sync"
	"testing"

	"onboarding/internal/domain/entity"
	domainerrors "onboarding/internal/domain/errors"
	"onboarding/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocumentService(env *testEnv) usecase.DocumentUsecase {
	return NewDocumentService(DocumentServiceParams{
		TxManager: env.txManager,
		DocRepo:   env.docRepo,
		Validator: env.validator,
		Metrics:   env.metrics,
		Config:    env.config,
		Logger:    env.logger,
	})
}

func submit(t *testing.T, srv usecase.DocumentUsecase, merchantID uuid.UUID, docType string) *usecase.DocumentChangeOutput {
	t.Helper()

	out, err := srv.SubmitDocument(context.Background(), &usecase.SubmitDocumentInput{
		MerchantID:   merchantID,
		DocumentType: docType,
		FileURL:      "https://files.example.com/" + docType + ".pdf",
	})
	require.NoError(t, err)

	return out
}

func review(t *testing.T, srv usecase.DocumentUsecase, documentID uuid.UUID, status entity.DocumentReviewStatus) *usecase.DocumentChangeOutput {
	t.Helper()

	out, err := srv.ReviewDocument(context.Background(), &usecase.ReviewDocumentInput{
		DocumentID: documentID,
		Status:     status,
		Reviewer:   "admin-1",
	})
	require.NoError(t, err)

	return out
}

func TestDocumentService_SubmitMovesMerchantToPending(t *testing.T) {
	tests := []struct {
		name    string
		initial entity.VerificationStatus
	}{
		{name: "unverified", initial: entity.VerificationUnverified},
		{name: "pending", initial: entity.VerificationPending},
		{name: "verified is re-reviewed", initial: entity.VerificationVerified},
		{name: "rejected resubmits", initial: entity.VerificationRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			srv := newTestDocumentService(env)
			merchant := env.seedMerchant(t, tt.initial)

			out := submit(t, srv, merchant.ID, "business_license")

			assert.Equal(t, entity.DocumentPendingReview, out.Document.Status)
			assert.Equal(t, entity.DocumentStatusPendingReview, out.DocumentStatus)
			assert.Equal(t, entity.VerificationPending, out.VerificationStatus)

			stored := env.reload(t, merchant.ID)
			assert.Equal(t, entity.DocumentStatusPendingReview, stored.DocumentStatus)
			assert.Equal(t, entity.VerificationPending, stored.VerificationStatus)
			assert.EqualValues(t, 2, stored.Version)
		})
	}
}

func TestDocumentService_ReviewAllCompleteVerifies(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	license := submit(t, srv, merchant.ID, "business_license")
	tax := submit(t, srv, merchant.ID, "tax_registration")

	out := review(t, srv, license.Document.ID, entity.DocumentComplete)
	assert.Equal(t, entity.DocumentStatusPendingReview, out.DocumentStatus)
	assert.Equal(t, entity.VerificationPending, out.VerificationStatus)

	out = review(t, srv, tax.Document.ID, entity.DocumentComplete)
	assert.Equal(t, entity.DocumentStatusComplete, out.DocumentStatus)
	assert.Equal(t, entity.VerificationVerified, out.VerificationStatus)
	assert.Equal(t, "admin-1", out.Document.ReviewedBy)
	assert.NotNil(t, out.Document.ReviewedAt)
}

func TestDocumentService_RejectionDominates(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	license := submit(t, srv, merchant.ID, "business_license")
	tax := submit(t, srv, merchant.ID, "tax_registration")
	review(t, srv, tax.Document.ID, entity.DocumentComplete)

	out := review(t, srv, license.Document.ID, entity.DocumentRejected)
	assert.Equal(t, entity.DocumentStatusRejected, out.DocumentStatus)
	assert.Equal(t, entity.VerificationRejected, out.VerificationStatus)

	// A fresh upload does not clear an outstanding rejection.
	out = submit(t, srv, merchant.ID, "storefront_photo")
	assert.Equal(t, entity.DocumentStatusRejected, out.DocumentStatus)
	assert.Equal(t, entity.VerificationRejected, out.VerificationStatus)
}

func TestDocumentService_RejectWalksThroughPending(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	merchant := env.seedMerchant(t, entity.VerificationVerified)

	doc := submit(t, srv, merchant.ID, "business_license")
	out := review(t, srv, doc.Document.ID, entity.DocumentRejected)

	assert.Equal(t, entity.VerificationRejected, out.VerificationStatus)
}

func TestDocumentService_PartialReviewKeepsAdminVerification(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	bulk := newTestBulkService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	license := submit(t, srv, merchant.ID, "business_license")
	submit(t, srv, merchant.ID, "tax_registration")

	result, err := bulk.ApplyBulkAction(context.Background(), &entity.BulkActionRequest{
		MerchantIDs: []uuid.UUID{merchant.ID},
		Action:      entity.BulkActionVerify,
		Actor:       "admin-1",
	})
	require.NoError(t, err)
	require.Equal(t, entity.OutcomeApplied, result.Results[0].Outcome)

	out := review(t, srv, license.Document.ID, entity.DocumentComplete)
	assert.Equal(t, entity.DocumentStatusPendingReview, out.DocumentStatus)
	assert.Equal(t, entity.VerificationVerified, out.VerificationStatus)
	assert.Equal(t, entity.VerificationVerified, env.reload(t, merchant.ID).VerificationStatus)

	// A new upload still re-opens review.
	out = submit(t, srv, merchant.ID, "storefront_photo")
	assert.Equal(t, entity.VerificationPending, out.VerificationStatus)
}

func TestDocumentService_Errors(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	ctx := context.Background()

	_, err := srv.SubmitDocument(ctx, &usecase.SubmitDocumentInput{MerchantID: uuid.New(), DocumentType: "business_license"})
	assert.True(t, errors.Is(err, domainerrors.ErrMerchantNotFound), "got %v", err)

	_, err = srv.ReviewDocument(ctx, &usecase.ReviewDocumentInput{DocumentID: uuid.New(), Status: entity.DocumentComplete, Reviewer: "admin-1"})
	assert.True(t, errors.Is(err, domainerrors.ErrDocumentNotFound), "got %v", err)

	_, err = srv.ReviewDocument(ctx, &usecase.ReviewDocumentInput{DocumentID: uuid.New(), Status: entity.DocumentPendingReview, Reviewer: "admin-1"})
	assert.True(t, errors.Is(err, domainerrors.ErrValidationFailed), "got %v", err)

	_, err = srv.ListDocuments(ctx, uuid.New())
	assert.True(t, errors.Is(err, domainerrors.ErrMerchantNotFound), "got %v", err)
}

func TestDocumentService_ListDocumentsInUploadOrder(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	first := submit(t, srv, merchant.ID, "business_license")
	second := submit(t, srv, merchant.ID, "tax_registration")

	documents, err := srv.ListDocuments(context.Background(), merchant.ID)
	require.NoError(t, err)
	require.Len(t, documents, 2)
	assert.Equal(t, first.Document.ID, documents[0].ID)
	assert.Equal(t, second.Document.ID, documents[1].ID)
}

func TestDocumentService_ConcurrentReviewsConverge(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestDocumentService(env)
	merchant := env.seedMerchant(t, entity.VerificationPending)

	const docs = 4
	ids := make([]uuid.UUID, docs)
	for i := range docs {
		ids[i] = submit(t, srv, merchant.ID, "doc").Document.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := srv.ReviewDocument(context.Background(), &usecase.ReviewDocumentInput{
				DocumentID: id,
				Status:     entity.DocumentComplete,
				Reviewer:   "admin-1",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored := env.reload(t, merchant.ID)
	assert.Equal(t, entity.DocumentStatusComplete, stored.DocumentStatus)
	assert.Equal(t, entity.VerificationVerified, stored.VerificationStatus)
}

func TestApplyAggregate_NoDocumentsChangesNothing(t *testing.T) {
	merchant := &entity.Merchant{VerificationStatus: entity.VerificationVerified, DocumentStatus: entity.DocumentStatusComplete}

	steps, err := applyAggregate(merchant, nil, false)
	require.NoError(t, err)
	assert.Empty(t, steps)
	assert.Equal(t, entity.DocumentStatusNone, merchant.DocumentStatus)
	assert.Equal(t, entity.VerificationVerified, merchant.VerificationStatus)
}

func TestApplyAggregate_UnverifiedRejectionTakesTwoSteps(t *testing.T) {
	merchant := &entity.Merchant{VerificationStatus: entity.VerificationUnverified}

	steps, err := applyAggregate(merchant, []*entity.Document{{Status: entity.DocumentRejected}}, false)
	require.NoError(t, err)
	assert.Equal(t, []transitionStep{
		{from: entity.VerificationUnverified, to: entity.VerificationPending},
		{from: entity.VerificationPending, to: entity.VerificationRejected},
	}, steps)
	assert.Equal(t, entity.VerificationRejected, merchant.VerificationStatus)
}

func TestApplyAggregate_PendingReview(t *testing.T) {
	tests := []struct {
		name     string
		previous entity.DocumentStatus
		uploaded bool
		want     entity.VerificationStatus
	}{
		{name: "review with others outstanding", previous: entity.DocumentStatusPendingReview, want: entity.VerificationVerified},
		{name: "upload", previous: entity.DocumentStatusPendingReview, uploaded: true, want: entity.VerificationPending},
		{name: "moved out of complete", previous: entity.DocumentStatusComplete, want: entity.VerificationPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merchant := &entity.Merchant{VerificationStatus: entity.VerificationVerified, DocumentStatus: tt.previous}

			_, err := applyAggregate(merchant, []*entity.Document{
				{Status: entity.DocumentComplete},
				{Status: entity.DocumentPendingReview},
			}, tt.uploaded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, merchant.VerificationStatus)
			assert.Equal(t, entity.DocumentStatusPendingReview, merchant.DocumentStatus)
		})
	}
}
