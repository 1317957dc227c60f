package shopify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	bulkMutationResource = "BULK_MUTATION_VARIABLES"
	jsonlMimeType        = "application/jsonl"
	uploadKeyParameter   = "key"
	defaultUploadTimeout = 2 * time.Minute
)

const stagedUploadsCreateMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets { url resourceUrl parameters { name value } }
    userErrors { field message }
  }
}`

const bulkOperationRunMutation = `mutation bulkOperationRunMutation($mutation: String!, $stagedUploadPath: String!) {
  bulkOperationRunMutation(mutation: $mutation, stagedUploadPath: $stagedUploadPath) {
    bulkOperation { id status }
    userErrors { field message }
  }
}`

// BulkMutation is a per-line mutation document and the filename its
// variables are uploaded under
type BulkMutation struct {
	Kind     catalogsync.ChangeKind
	Document string
	Filename string
}

// Mutations used by the sync
var (
	PriceMutation = BulkMutation{
		Kind:     catalogsync.ChangeKindPrice,
		Filename: "price-updates.jsonl",
		Document: `mutation productVariantUpdate($input: ProductVariantInput!) {
  productVariantUpdate(input: $input) {
    productVariant { id price compareAtPrice }
    userErrors { field message }
  }
}`,
	}
	StatusMutation = BulkMutation{
		Kind:     catalogsync.ChangeKindStatus,
		Filename: "status-updates.jsonl",
		Document: `mutation productUpdate($input: ProductInput!) {
  productUpdate(input: $input) {
    product { id status }
    userErrors { field message }
  }
}`,
	}
	CostMutation = BulkMutation{
		Kind:     catalogsync.ChangeKindCost,
		Filename: "bulk-update-costs.jsonl",
		Document: `mutation inventoryItemUpdate($input: InventoryItemInput!) {
  inventoryItemUpdate(input: $input) {
    inventoryItem { id unitCost { amount } }
    userErrors { field message }
  }
}`,
	}
)

// PayloadArchiver keeps a copy of every uploaded variables file
type PayloadArchiver interface {
	Archive(ctx context.Context, kind catalogsync.ChangeKind, filename string, payload []byte) error
}

// StagedTarget is an upload destination returned by stagedUploadsCreate
type StagedTarget struct {
	URL         string            `json:"url"`
	ResourceURL *string           `json:"resourceUrl"`
	Parameters  []StagedParameter `json:"parameters"`
}

// StagedParameter is a form field the upload must carry
type StagedParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Parameter returns the value of the named form field
func (t StagedTarget) Parameter(name string) (string, bool) {
	for _, p := range t.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

type stagedUploadInput struct {
	Resource   string `json:"resource"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mimeType"`
	HTTPMethod string `json:"httpMethod"`
}

type stagedUploadsResponse struct {
	StagedUploadsCreate struct {
		StagedTargets []StagedTarget `json:"stagedTargets"`
		UserErrors    []UserError    `json:"userErrors"`
	} `json:"stagedUploadsCreate"`
}

type bulkRunResponse struct {
	BulkOperationRunMutation struct {
		BulkOperation *catalogsync.BulkOperation `json:"bulkOperation"`
		UserErrors    []UserError                `json:"userErrors"`
	} `json:"bulkOperationRunMutation"`
}

// BulkPipeline submits change sets as bulk mutations: stage an upload,
// upload the JSONL variables, then start the bulk operation. It returns
// once the operation is accepted and does not wait for it to finish.
type BulkPipeline struct {
	exec       Executor
	httpClient *http.Client
	archiver   PayloadArchiver
	logger     *zap.Logger
}

var _ catalogsync.BulkSubmitter = (*BulkPipeline)(nil)

// BulkOption configures a BulkPipeline
type BulkOption func(*BulkPipeline)

// WithUploadClient sets the HTTP client used for staged uploads
func WithUploadClient(hc *http.Client) BulkOption {
	return func(p *BulkPipeline) {
		p.httpClient = hc
	}
}

// WithArchiver stores a copy of every uploaded payload
func WithArchiver(a PayloadArchiver) BulkOption {
	return func(p *BulkPipeline) {
		p.archiver = a
	}
}

// WithBulkLogger sets the logger
func WithBulkLogger(logger *zap.Logger) BulkOption {
	return func(p *BulkPipeline) {
		p.logger = logger
	}
}

// NewBulkPipeline creates a BulkPipeline that issues GraphQL through exec
func NewBulkPipeline(exec Executor, opts ...BulkOption) *BulkPipeline {
	p := &BulkPipeline{
		exec:       exec,
		httpClient: &http.Client{Timeout: defaultUploadTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitPriceChanges submits variant price updates
func (p *BulkPipeline) SubmitPriceChanges(ctx context.Context, changes []catalogsync.PriceChange) (*catalogsync.BulkOperation, error) {
	if len(changes) == 0 {
		return nil, ErrEmptySubmission
	}
	payload, err := EncodePriceChanges(changes)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, PriceMutation, payload)
}

// SubmitStatusChanges submits product status updates
func (p *BulkPipeline) SubmitStatusChanges(ctx context.Context, changes []catalogsync.StatusChange) (*catalogsync.BulkOperation, error) {
	if len(changes) == 0 {
		return nil, ErrEmptySubmission
	}
	payload, err := EncodeStatusChanges(changes)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, StatusMutation, payload)
}

// SubmitCostChanges submits inventory item cost updates
func (p *BulkPipeline) SubmitCostChanges(ctx context.Context, changes []catalogsync.CostChange) (*catalogsync.BulkOperation, error) {
	if len(changes) == 0 {
		return nil, ErrEmptySubmission
	}
	payload, err := EncodeCostChanges(changes)
	if err != nil {
		return nil, err
	}
	return p.Submit(ctx, CostMutation, payload)
}

// Submit runs the three-step bulk pipeline for a JSONL payload
func (p *BulkPipeline) Submit(ctx context.Context, m BulkMutation, payload []byte) (*catalogsync.BulkOperation, error) {
	ctx, span := telemetry.StartSpan(ctx, "shopify.bulk_submit",
		telemetry.WithAttribute(telemetry.SpanAttrChangeKind, m.Kind.String()),
		telemetry.WithAttribute("payload_bytes", len(payload)),
	)
	defer span.End()

	log := p.logger.With(zap.String("change_kind", m.Kind.String()), zap.String("filename", m.Filename))

	target, err := p.stage(ctx, m.Filename)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	stagedPath, ok := target.Parameter(uploadKeyParameter)
	if !ok || stagedPath == "" {
		telemetry.RecordError(span, ErrMissingUploadKey)
		return nil, ErrMissingUploadKey
	}

	if p.archiver != nil {
		if err := p.archiver.Archive(ctx, m.Kind, m.Filename, payload); err != nil {
			log.Warn("Failed to archive bulk payload", zap.Error(err))
		}
	}

	if err := p.upload(ctx, target, m.Filename, payload); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	log.Debug("Uploaded bulk variables", zap.String("staged_path", stagedPath), zap.Int("bytes", len(payload)))

	op, err := p.run(ctx, m.Document, stagedPath)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrOperationID, op.ID)
	log.Info("Bulk operation started", zap.String("operation_id", op.ID), zap.String("status", op.Status))
	return op, nil
}

func (p *BulkPipeline) stage(ctx context.Context, filename string) (*StagedTarget, error) {
	vars := map[string]any{
		"input": []stagedUploadInput{{
			Resource:   bulkMutationResource,
			Filename:   filename,
			MimeType:   jsonlMimeType,
			HTTPMethod: http.MethodPost,
		}},
	}
	var resp stagedUploadsResponse
	if err := p.exec.Execute(ctx, stagedUploadsCreateMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("stagedUploadsCreate: %w", err)
	}
	if err := checkUserErrors("stagedUploadsCreate", resp.StagedUploadsCreate.UserErrors); err != nil {
		return nil, err
	}
	if len(resp.StagedUploadsCreate.StagedTargets) == 0 {
		return nil, ErrNoStagedTarget
	}
	return &resp.StagedUploadsCreate.StagedTargets[0], nil
}

// upload posts the payload as multipart form data: the staged parameters
// in their given order, then the file part.
func (p *BulkPipeline) upload(ctx context.Context, target *StagedTarget, filename string, payload []byte) error {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, param := range target.Parameters {
		if err := form.WriteField(param.Name, param.Value); err != nil {
			return fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", jsonlMimeType)
	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: http %d: %s", ErrUploadFailed, resp.StatusCode, raw)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p *BulkPipeline) run(ctx context.Context, document, stagedPath string) (*catalogsync.BulkOperation, error) {
	vars := map[string]any{
		"mutation":         document,
		"stagedUploadPath": stagedPath,
	}
	var resp bulkRunResponse
	if err := p.exec.Execute(ctx, bulkOperationRunMutation, vars, &resp); err != nil {
		return nil, fmt.Errorf("bulkOperationRunMutation: %w", err)
	}
	if err := checkUserErrors("bulkOperationRunMutation", resp.BulkOperationRunMutation.UserErrors); err != nil {
		return nil, err
	}
	if resp.BulkOperationRunMutation.BulkOperation == nil {
		return nil, ErrNoBulkOperation
	}
	return resp.BulkOperationRunMutation.BulkOperation, nil
}
