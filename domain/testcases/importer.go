package testcases

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/emergent-company/testmind/domain/folders"
	"github.com/emergent-company/testmind/internal/storage"
	"github.com/emergent-company/testmind/pkg/apperror"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FolderService is the part of the folders service the importer needs.
type FolderService interface {
	FolderReader
	List(ctx context.Context, projectID string) ([]folders.Folder, error)
	EnsurePath(ctx context.Context, projectID string, base *folders.Folder, segments []string) (*folders.Folder, error)
}

// ImportRequest describes one uploaded workbook.
type ImportRequest struct {
	ProjectID      string
	ParentFolderID string
	Filename       string
	Data           []byte
	UserID         string
}

// RowError explains why a row was not imported.
type RowError struct {
	Row     int    `json:"row"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// ImportResult summarizes an import. SuccessCount + ErrorCount equals the
// number of parsed rows.
type ImportResult struct {
	SuccessCount     int             `json:"successCount"`
	ErrorCount       int             `json:"errorCount"`
	Errors           []RowError      `json:"errors"`
	CreatedTestCases []TestCase      `json:"createdTestCases"`
	CreatedTestSteps []TestStep      `json:"createdTestSteps"`
	BaseFolder       *folders.Folder `json:"baseFolder,omitempty"`
	ArchiveKey       string          `json:"archiveKey,omitempty"`
}

// Importer moves test cases between the store and Excel workbooks.
type Importer struct {
	svc     *Service
	store   Store
	folders FolderService
	objects storage.ObjectStore
	log     *slog.Logger
}

func NewImporter(svc *Service, store Store, folderSvc FolderService, objects storage.ObjectStore, log *slog.Logger) *Importer {
	return &Importer{
		svc:     svc,
		store:   store,
		folders: folderSvc,
		objects: objects,
		log:     log.With(logger.Scope("testcases.import")),
	}
}

// BaseFolderName strips the directory and extension from an upload name.
func BaseFolderName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSpace(strings.ReplaceAll(name, "/", "-"))
	if name == "" || name == "." {
		return "import"
	}
	return name
}

// Import parses the workbook and creates one test case per row. Rows whose
// name already exists in the project, or repeats an earlier row, are
// reported as errors and skipped.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if req.ProjectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}
	if len(req.Data) == 0 {
		return nil, apperror.NewBadRequest("file is required")
	}

	wb, err := ParseWorkbook(bytes.NewReader(req.Data))
	if err != nil {
		return nil, apperror.NewBadRequest(err.Error())
	}

	var parent *folders.Folder
	if req.ParentFolderID != "" {
		parent, err = im.folders.Get(ctx, req.ParentFolderID)
		if err != nil {
			return nil, err
		}
		if parent.ProjectID != req.ProjectID {
			return nil, apperror.NewBadRequest("parent folder belongs to another project")
		}
	}
	base, err := im.folders.EnsurePath(ctx, req.ProjectID, parent, []string{BaseFolderName(req.Filename)})
	if err != nil {
		return nil, fmt.Errorf("create base folder: %w", err)
	}

	names := make([]string, 0, len(wb.Rows))
	for _, r := range wb.Rows {
		if r.Case.Name != "" {
			names = append(names, r.Case.Name)
		}
	}
	existing, err := im.store.ExistingNames(ctx, req.ProjectID, names)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing)+len(names))
	for _, n := range existing {
		taken[n] = true
	}

	result := &ImportResult{
		Errors:           []RowError{},
		CreatedTestCases: []TestCase{},
		CreatedTestSteps: []TestStep{},
		BaseFolder:       base,
	}
	fail := func(r ImportRow, msg string) {
		result.ErrorCount++
		result.Errors = append(result.Errors, RowError{Row: r.Row, Name: r.Case.Name, Message: msg})
	}

	for _, r := range wb.Rows {
		if r.Case.Name == "" {
			fail(r, "name is required")
			continue
		}
		if taken[r.Case.Name] {
			fail(r, fmt.Sprintf("test case %q already exists", r.Case.Name))
			continue
		}

		folder, err := im.folders.EnsurePath(ctx, req.ProjectID, base, r.Path)
		if err != nil {
			fail(r, "folder: "+err.Error())
			continue
		}

		create := r.Case
		create.ProjectID = req.ProjectID
		create.FolderID = &folder.ID
		create.Steps = r.Steps

		tc, err := im.svc.Create(ctx, req.UserID, create)
		if err != nil {
			fail(r, errorMessage(err))
			continue
		}
		taken[r.Case.Name] = true
		result.SuccessCount++
		result.CreatedTestSteps = append(result.CreatedTestSteps, tc.Steps...)
		tc.Steps = nil
		result.CreatedTestCases = append(result.CreatedTestCases, *tc)
	}

	metrics.ImportRows.WithLabelValues("created").Add(float64(result.SuccessCount))
	metrics.ImportRows.WithLabelValues("skipped").Add(float64(result.ErrorCount))

	result.ArchiveKey = im.archive(ctx, req)

	im.log.Info("test cases imported",
		slog.String("projectID", req.ProjectID),
		slog.String("locale", wb.Locale),
		slog.Int("rows", len(wb.Rows)),
		slog.Int("created", result.SuccessCount),
		slog.Int("skipped", result.ErrorCount))
	return result, nil
}

// archive keeps the uploaded file in object storage. Failures are logged
// and do not fail the import.
func (im *Importer) archive(ctx context.Context, req ImportRequest) string {
	if im.objects == nil || !im.objects.Enabled() {
		return ""
	}
	key := storage.ObjectKey(req.ProjectID, "imports", req.Filename)
	if _, err := im.objects.Put(ctx, key, req.Data, xlsxContentType); err != nil {
		im.log.Warn("archive import file failed", slog.String("key", key), logger.Error(err))
		return ""
	}
	return key
}

func errorMessage(err error) string {
	if appErr, ok := apperror.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}

// Export writes every test case of the project into a workbook.
func (im *Importer) Export(ctx context.Context, projectID, locale string) ([]byte, error) {
	if projectID == "" {
		return nil, apperror.NewBadRequest("projectId is required")
	}

	cases, err := im.store.List(ctx, ListFilter{ProjectID: projectID, Limit: MaxLimit})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(cases))
	for i, tc := range cases {
		ids[i] = tc.ID
	}
	steps, err := im.store.StepsFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	list, err := im.folders.List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	paths := make(map[string]string, len(list))
	for _, f := range list {
		paths[f.ID] = strings.TrimPrefix(f.Path, "/")
	}

	rows := make([]ExportRow, len(cases))
	for i, tc := range cases {
		row := ExportRow{Case: tc, Steps: steps[tc.ID]}
		if tc.FolderID != nil {
			row.FolderPath = paths[*tc.FolderID]
		}
		rows[i] = row
	}

	data, err := BuildWorkbook(locale, rows)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return data, nil
}

// Template returns the import template for locale.
func (im *Importer) Template(locale string) ([]byte, error) {
	data, err := TemplateWorkbook(locale)
	if err != nil {
		return nil, apperror.ErrInternal.WithInternal(err)
	}
	return data, nil
}
