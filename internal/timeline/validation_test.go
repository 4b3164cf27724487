package timeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solardesk/solardesk/internal/domain"
)

// fakeDocumentSource serves canned documents keyed by category.
type fakeDocumentSource struct {
	docs map[string][]*domain.Document
}

func (f *fakeDocumentSource) ListByLeadAndCategory(_ context.Context, _, category string) ([]*domain.Document, error) {
	return f.docs[category], nil
}

func validDoc(category string) *domain.Document {
	return &domain.Document{ID: category + "-doc", Category: category, Status: domain.DocumentValid}
}

func TestValidateComplete_RemarksRequired(t *testing.T) {
	policy := NewValidationPolicy(&fakeDocumentSource{})
	target := view("Survey", 0, domain.CategoryGeneral, domain.StepPending)
	target.Template.RemarksRequired = true

	err := policy.ValidateComplete(context.Background(), target, nil, nil)
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidationFailed, te.Code)
	assert.Contains(t, te.Missing, "remarks")

	err = policy.ValidateComplete(context.Background(), target, domain.NoteRemarks("done on site"), nil)
	assert.NoError(t, err)
}

func TestValidateComplete_RemarkKindMustMatchCategory(t *testing.T) {
	policy := NewValidationPolicy(&fakeDocumentSource{})
	target := view("Payment", 0, domain.CategoryPayment, domain.StepPending)
	target.Template.RemarksRequired = true

	// A bare note on a payment step is the wrong payload shape.
	err := policy.ValidateComplete(context.Background(), target, domain.NoteRemarks("paid"), nil)
	require.Error(t, err)

	payment := &domain.Remarks{
		Kind:    domain.RemarkPayment,
		Payment: &domain.PaymentDetails{Mode: "cash", Amount: 10000},
	}
	assert.NoError(t, policy.ValidateComplete(context.Background(), target, payment, nil))
}

func TestValidateComplete_PayloadShapeChecked(t *testing.T) {
	policy := NewValidationPolicy(&fakeDocumentSource{})
	target := view("Payment", 0, domain.CategoryPayment, domain.StepPending)

	// Kind says payment but no payment payload attached.
	broken := &domain.Remarks{Kind: domain.RemarkPayment, Note: "paid"}
	err := policy.ValidateComplete(context.Background(), target, broken, nil)
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, CodeValidationFailed, te.Code)
}

func TestValidateComplete_Attachments(t *testing.T) {
	policy := NewValidationPolicy(&fakeDocumentSource{})
	ctx := context.Background()

	required := view("Upload", 0, domain.CategoryDocument, domain.StepPending)
	required.Template.AttachmentsAllowed = true
	required.Template.AttachmentsRequired = true

	err := policy.ValidateComplete(ctx, required, nil, nil)
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Missing, "at least one attachment")

	assert.NoError(t, policy.ValidateComplete(ctx, required, nil, []string{"blobs/a.pdf"}))

	// Attachments on a step that does not accept them.
	plain := view("Survey", 1, domain.CategoryGeneral, domain.StepPending)
	err = policy.ValidateComplete(ctx, plain, nil, []string{"blobs/a.pdf"})
	assert.Error(t, err)
}

func TestValidateComplete_MandatoryDocuments(t *testing.T) {
	source := &fakeDocumentSource{docs: map[string][]*domain.Document{
		"identity_proof": {validDoc("identity_proof")},
		"electricity_bill": {
			{ID: "bill", Category: "electricity_bill", Status: domain.DocumentRejected},
		},
	}}
	policy := NewValidationPolicy(source)

	target := view("Upload", 0, domain.CategoryDocument, domain.StepPending)
	target.Template.MandatoryDocs = []string{"identity_proof", "electricity_bill"}

	err := policy.ValidateComplete(context.Background(), target, nil, nil)
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	require.Len(t, te.Missing, 1)
	assert.Contains(t, te.Missing[0], "electricity_bill")

	source.docs["electricity_bill"] = []*domain.Document{validDoc("electricity_bill")}
	assert.NoError(t, policy.ValidateComplete(context.Background(), target, nil, nil))
}

func TestValidateSkip(t *testing.T) {
	policy := NewValidationPolicy(&fakeDocumentSource{})

	target := view("Net Meter", 0, domain.CategoryGeneral, domain.StepPending)
	err := policy.ValidateSkip(target, nil)
	require.Error(t, err)

	assert.NoError(t, policy.ValidateSkip(target, domain.NoteRemarks("not applicable off-grid")))

	closure := view("Handover", 1, domain.CategoryClosure, domain.StepPending)
	err = policy.ValidateSkip(closure, domain.NoteRemarks("skip it"))
	require.Error(t, err)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Missing[0], "cannot be skipped")
}
