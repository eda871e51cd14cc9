package assistant

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/emergent-company/testmind/domain/automation"
	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/sse"
)

// editableKinds are the document kinds the assistant writes.
var editableKinds = []string{documents.KindText, documents.KindCode, documents.KindSheet}

var kindInstructions = map[string]string{
	documents.KindText:  "Write the document in Markdown. Reply with the document only.",
	documents.KindCode:  "Write the code in a single fenced block. Reply with the code only.",
	documents.KindSheet: "Write the sheet as CSV with a header row in a single fenced block. Reply with the CSV only.",
}

type CreateDocumentArgs struct {
	Title        string `json:"title" jsonschema:"short title of the document"`
	Kind         string `json:"kind" jsonschema:"document kind: text, code or sheet"`
	Instructions string `json:"instructions,omitempty" jsonschema:"what the document should contain"`
}

type UpdateDocumentArgs struct {
	DocumentID  string `json:"documentId" jsonschema:"id of the document to update"`
	Description string `json:"description" jsonschema:"the changes to make"`
}

// DocumentResult is returned to the model. documentId links the chat to
// the document.
type DocumentResult struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}

func (r *Registry) createDocument(s *Scope) Tool[CreateDocumentArgs, DocumentResult] {
	return Tool[CreateDocumentArgs, DocumentResult]{
		Name:        ToolCreateDocument,
		Description: "Create a document (text, code or sheet) and write its content. The document is shown to the user beside the chat.",
		Execute: func(ctx context.Context, a CreateDocumentArgs) (DocumentResult, error) {
			kind := a.Kind
			if kind == "" {
				kind = documents.KindText
			}
			if !slices.Contains(editableKinds, kind) {
				return DocumentResult{}, apperror.NewBadRequest(fmt.Sprintf("kind must be one of %s", strings.Join(editableKinds, ", ")))
			}

			doc, err := r.docs.Create(ctx, s.userID(), documents.CreateRequest{
				ProjectID: s.ProjectID,
				Kind:      kind,
				Title:     a.Title,
			})
			if err != nil {
				return DocumentResult{}, err
			}

			prompt := "Title: " + doc.Title
			if a.Instructions != "" {
				prompt += "\n\n" + a.Instructions
			}
			content, err := r.writeDocument(ctx, s.Sink, doc, prompt)
			if err != nil {
				return DocumentResult{}, err
			}
			if _, err := r.docs.Update(context.WithoutCancel(ctx), doc.ID, doc.Title, content); err != nil {
				return DocumentResult{}, err
			}
			return DocumentResult{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Kind:       doc.Kind,
				Message:    "The document was created and is now visible to the user.",
			}, nil
		},
	}
}

func (r *Registry) updateDocument(s *Scope) Tool[UpdateDocumentArgs, DocumentResult] {
	return Tool[UpdateDocumentArgs, DocumentResult]{
		Name:        ToolUpdateDocument,
		Description: "Rewrite an existing document according to a description of the changes.",
		Execute: func(ctx context.Context, a UpdateDocumentArgs) (DocumentResult, error) {
			doc, err := r.docs.Get(ctx, a.DocumentID)
			if err != nil {
				return DocumentResult{}, err
			}
			if err := r.canEdit(s, doc); err != nil {
				return DocumentResult{}, err
			}

			prompt := fmt.Sprintf("Current content of %q:\n\n%s\n\nApply these changes:\n%s", doc.Title, doc.Content, a.Description)
			content, err := r.writeDocument(ctx, s.Sink, doc, prompt)
			if err != nil {
				return DocumentResult{}, err
			}
			if _, err := r.docs.Update(context.WithoutCancel(ctx), doc.ID, doc.Title, content); err != nil {
				return DocumentResult{}, err
			}
			return DocumentResult{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Kind:       doc.Kind,
				Message:    "The document has been updated.",
			}, nil
		},
	}
}

func (r *Registry) canEdit(s *Scope, doc *documents.Document) error {
	if !slices.Contains(editableKinds, doc.Kind) {
		return apperror.NewBadRequest(fmt.Sprintf("%s documents cannot be edited", doc.Kind))
	}
	if doc.ProjectID != "" {
		if s.User != nil && !s.User.CanAccess(doc.ProjectID) {
			return apperror.NewForbidden("no access to project " + doc.ProjectID)
		}
		return nil
	}
	if doc.CreatedBy != s.userID() {
		return apperror.NewForbidden("document belongs to another user")
	}
	return nil
}

// writeDocument streams the content of doc from the artifact model into an
// artifact and returns the final content. On failure the artifact gets an
// error delta before finishing.
func (r *Registry) writeDocument(ctx context.Context, sink sse.Sink, doc *documents.Document, prompt string) (string, error) {
	art := sse.NewArtifactWriter(sink)
	_ = art.Begin(doc.ID, doc.Kind, doc.Title)

	res, err := r.resolver.Resolve(ctx, "", config.UsageArtifact)
	if err != nil {
		_ = art.Fail(err)
		return "", err
	}

	var acc strings.Builder
	raw, err := adk.StreamText(ctx, res.LLM, kindInstructions[doc.Kind], prompt, adk.GenerateConfig(&r.cfg.LLM), func(chunk string) {
		acc.WriteString(chunk)
		_ = art.Delta(acc.String())
	})
	if err != nil {
		_ = art.Fail(err)
		return "", fmt.Errorf("write document: %w", err)
	}

	content := strings.TrimSpace(raw)
	if doc.Kind != documents.KindText {
		content = automation.ExtractScript(raw)
	}
	_ = art.Delta(content)
	_ = art.Finish()
	return content, nil
}
