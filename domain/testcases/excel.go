package testcases

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// sheetLayout names the sheets and columns of a workbook in one locale.
type sheetLayout struct {
	Locale      string
	CasesSheet  string
	StepsSheet  string
	CaseColumns []string
	StepColumns []string
}

// Column keys, in sheet order.
var (
	caseKeys = []string{"name", "description", "preconditions", "priority", "weight", "status", "nature", "type", "tags", "folderPath"}
	stepKeys = []string{"testCaseName", "stepNumber", "action", "expected", "type"}
)

var layouts = []sheetLayout{
	{
		Locale:      "en",
		CasesSheet:  "Test Cases",
		StepsSheet:  "Test Steps",
		CaseColumns: []string{"Name", "Description", "Preconditions", "Priority", "Weight", "Status", "Nature", "Type", "Tags", "Folder Path"},
		StepColumns: []string{"Test Case Name", "Step Number", "Action", "Expected Result", "Type"},
	},
	{
		Locale:      "zh",
		CasesSheet:  "测试用例",
		StepsSheet:  "测试步骤",
		CaseColumns: []string{"名称", "描述", "前置条件", "优先级", "权重", "状态", "性质", "类型", "标签", "文件夹路径"},
		StepColumns: []string{"用例名称", "步骤编号", "操作步骤", "预期结果", "类型"},
	},
}

// layoutFor returns the layout of locale, defaulting to English.
func layoutFor(locale string) sheetLayout {
	for _, l := range layouts {
		if strings.EqualFold(l.Locale, locale) || strings.HasPrefix(strings.ToLower(locale), l.Locale+"-") {
			return l
		}
	}
	return layouts[0]
}

// ImportRow is one parsed row of the test cases sheet.
type ImportRow struct {
	Row   int
	Case  CreateTestCaseRequest
	Path  []string
	Steps []StepInput
}

// ParsedWorkbook is the content of an import file.
type ParsedWorkbook struct {
	Locale string
	Rows   []ImportRow
}

// ParseWorkbook reads both sheets, matched by their localized names.
func ParseWorkbook(r io.Reader) (*ParsedWorkbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var layout *sheetLayout
	for i := range layouts {
		if slices.Contains(sheets, layouts[i].CasesSheet) && slices.Contains(sheets, layouts[i].StepsSheet) {
			layout = &layouts[i]
			break
		}
	}
	if layout == nil {
		return nil, fmt.Errorf("workbook must contain the sheets %q and %q (or %q and %q)",
			layouts[0].CasesSheet, layouts[0].StepsSheet, layouts[1].CasesSheet, layouts[1].StepsSheet)
	}

	caseRows, err := f.GetRows(layout.CasesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layout.CasesSheet, err)
	}
	stepRows, err := f.GetRows(layout.StepsSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", layout.StepsSheet, err)
	}

	steps, err := parseSteps(stepRows, layout)
	if err != nil {
		return nil, err
	}

	out := &ParsedWorkbook{Locale: layout.Locale}
	if len(caseRows) == 0 {
		return out, nil
	}
	idx := headerIndex(caseRows[0], layout.CaseColumns, caseKeys)
	if _, ok := idx["name"]; !ok {
		return nil, fmt.Errorf("sheet %s has no %q column", layout.CasesSheet, layout.CaseColumns[0])
	}

	for i, row := range caseRows[1:] {
		if isBlank(row) {
			continue
		}
		get := cellGetter(row, idx)
		name := get("name")
		out.Rows = append(out.Rows, ImportRow{
			Row: i + 2,
			Case: CreateTestCaseRequest{
				Name:          name,
				Description:   get("description"),
				Preconditions: get("preconditions"),
				Priority:      get("priority"),
				Weight:        get("weight"),
				Status:        get("status"),
				Nature:        get("nature"),
				Type:          get("type"),
				Tags:          splitList(get("tags")),
			},
			Path:  splitPath(get("folderPath")),
			Steps: steps[name],
		})
	}
	return out, nil
}

type numberedStep struct {
	n     int
	order int
	step  StepInput
}

func parseSteps(rows [][]string, layout *sheetLayout) (map[string][]StepInput, error) {
	out := map[string][]StepInput{}
	if len(rows) == 0 {
		return out, nil
	}
	idx := headerIndex(rows[0], layout.StepColumns, stepKeys)
	for _, key := range []string{"testCaseName", "action"} {
		if _, ok := idx[key]; !ok {
			return nil, fmt.Errorf("sheet %s is missing column %q", layout.StepsSheet, layout.StepColumns[slices.Index(stepKeys, key)])
		}
	}

	grouped := map[string][]numberedStep{}
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		get := cellGetter(row, idx)
		name := get("testCaseName")
		if name == "" {
			continue
		}
		n, err := strconv.Atoi(get("stepNumber"))
		if err != nil {
			n = i + 1
		}
		grouped[name] = append(grouped[name], numberedStep{
			n:     n,
			order: i,
			step:  StepInput{Action: get("action"), Expected: get("expected"), Type: get("type")},
		})
	}

	for name, list := range grouped {
		sort.SliceStable(list, func(a, b int) bool {
			if list[a].n != list[b].n {
				return list[a].n < list[b].n
			}
			return list[a].order < list[b].order
		})
		for _, s := range list {
			out[name] = append(out[name], s.step)
		}
	}
	return out, nil
}

// headerIndex maps column keys to their index. Headers match either the
// localized title or the key itself, case-insensitively.
func headerIndex(header, titles, keys []string) map[string]int {
	idx := make(map[string]int, len(keys))
	for col, h := range header {
		h = strings.TrimSpace(h)
		for k, key := range keys {
			if strings.EqualFold(h, titles[k]) || strings.EqualFold(h, key) {
				idx[key] = col
			}
		}
	}
	return idx
}

func cellGetter(row []string, idx map[string]int) func(string) string {
	return func(key string) string {
		i, ok := idx[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func splitPath(s string) []string {
	var out []string
	for _, seg := range strings.Split(s, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ExportRow is one test case as written to a workbook.
type ExportRow struct {
	Case       TestCase
	FolderPath string
	Steps      []TestStep
}

// BuildWorkbook writes rows into a new two-sheet workbook for locale.
func BuildWorkbook(locale string, rows []ExportRow) ([]byte, error) {
	layout := layoutFor(locale)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), layout.CasesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(layout.StepsSheet); err != nil {
		return nil, err
	}

	if err := writeRow(f, layout.CasesSheet, 1, toAny(layout.CaseColumns)); err != nil {
		return nil, err
	}
	if err := writeRow(f, layout.StepsSheet, 1, toAny(layout.StepColumns)); err != nil {
		return nil, err
	}

	caseRow, stepRow := 2, 2
	for _, r := range rows {
		tc := r.Case
		err := writeRow(f, layout.CasesSheet, caseRow, []any{
			tc.Name, tc.Description, tc.Preconditions, tc.Priority, tc.Weight,
			tc.Status, tc.Nature, tc.Type, strings.Join(tc.Tags, ", "), r.FolderPath,
		})
		if err != nil {
			return nil, err
		}
		caseRow++

		for _, s := range r.Steps {
			if err := writeRow(f, layout.StepsSheet, stepRow, []any{tc.Name, s.StepNumber, s.Action, s.Expected, s.Type}); err != nil {
				return nil, err
			}
			stepRow++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateWorkbook returns an empty import template with one example case.
func TemplateWorkbook(locale string) ([]byte, error) {
	example := ExportRow{
		Case: TestCase{
			Name:        "Login Test",
			Description: "User signs in with valid credentials",
			Priority:    "high",
			Weight:      "medium",
			Status:      "draft",
			Nature:      "functional",
			Type:        "manual",
			Tags:        []string{"smoke", "auth"},
		},
		FolderPath: "Auth/Login",
		Steps: []TestStep{
			{StepNumber: 1, Action: "Open the login page", Expected: "The login form is shown", Type: "action"},
			{StepNumber: 2, Action: "Submit valid credentials", Expected: "The dashboard is shown", Type: "verification"},
		},
	}
	return BuildWorkbook(locale, []ExportRow{example})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
