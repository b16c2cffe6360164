// Package catalog loads category question banks from spreadsheets.
//
// Every sheet of a workbook is one category named after the sheet. The first
// row is a header; each following row holds an id, the question text, two to
// eight options and, in the last used column, the correct option written as
// its 1-based number ("2", "Option 2" or "گزینه ۲" all work). When the last
// header cell mentions "timer", the column after the indicator holds a
// per-question timer in seconds.
package catalog

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/security"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"github.com/mroshb/trivia_arena/pkg/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	minOptions = 2
	maxOptions = 8
	minTimer   = 5
	maxTimer   = 300
)

type CategoryStore interface {
	FindOrCreateCategory(ctx context.Context, name, description string) (*models.Category, error)
}

type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	CountByCategory(ctx context.Context, categoryID uint) (int, error)
}

// RowError explains why a spreadsheet row was skipped.
type RowError struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Err   string `json:"error"`
}

type Report struct {
	Categories int        `json:"categories"`
	Imported   int        `json:"imported"`
	Skipped    []RowError `json:"skipped,omitempty"`
}

type Importer struct {
	categories CategoryStore
	questions  QuestionStore
	dryRun     bool
	log        *zap.SugaredLogger
}

type Option func(*Importer)

// DryRun parses and validates without writing anything.
func DryRun() Option {
	return func(i *Importer) { i.dryRun = true }
}

func NewImporter(categories CategoryStore, questions QuestionStore, opts ...Option) *Importer {
	i := &Importer{
		categories: categories,
		questions:  questions,
		log:        logger.Named("catalog"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Importer) ImportFile(ctx context.Context, path string) (*Report, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

func (i *Importer) ImportReader(ctx context.Context, r io.Reader) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()
	return i.importWorkbook(ctx, f)
}

func (i *Importer) importWorkbook(ctx context.Context, f *excelize.File) (*Report, error) {
	report := &Report{}

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return report, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if err := i.importSheet(ctx, sheet, rows, report); err != nil {
			return report, err
		}
	}

	i.log.Infow("Import finished", "categories", report.Categories, "imported", report.Imported, "skipped", len(report.Skipped), "dryRun", i.dryRun)
	return report, nil
}

func (i *Importer) importSheet(ctx context.Context, sheet string, rows [][]string, report *Report) error {
	name := utils.NormalizeText(sheet)
	if name == "" || len(rows) < 2 {
		return nil
	}

	var (
		categoryID uint
		order      int
	)
	if !i.dryRun {
		category, err := i.categories.FindOrCreateCategory(ctx, name, "")
		if err != nil {
			return fmt.Errorf("failed to create category %s: %w", name, err)
		}
		categoryID = category.ID
		if order, err = i.questions.CountByCategory(ctx, categoryID); err != nil {
			return fmt.Errorf("failed to count questions of %s: %w", name, err)
		}
	}
	report.Categories++

	withTimer := hasTimerColumn(rows[0])
	for idx, row := range rows[1:] {
		rowNum := idx + 2
		q, err := ParseRow(row, withTimer)
		if err != nil {
			report.Skipped = append(report.Skipped, RowError{Sheet: sheet, Row: rowNum, Err: err.Error()})
			continue
		}
		if i.dryRun {
			report.Imported++
			continue
		}

		id := categoryID
		q.CategoryID = &id
		q.QuestionOrder = order
		if err := i.questions.CreateQuestion(ctx, q); err != nil {
			i.log.Warnw("Failed to store question", "sheet", sheet, "row", rowNum, "error", err)
			report.Skipped = append(report.Skipped, RowError{Sheet: sheet, Row: rowNum, Err: err.Error()})
			continue
		}
		order++
		report.Imported++
	}
	return nil
}

// ParseRow turns one spreadsheet row into an unsaved question. withTimer
// says whether the row ends with a timer column.
func ParseRow(row []string, withTimer bool) (*models.Question, error) {
	cells := trimTrailingEmpty(row)
	minCells := 2 + minOptions + 1
	if withTimer {
		minCells++
	}
	if len(cells) < minCells {
		return nil, fmt.Errorf("expected at least %d columns, got %d", minCells, len(cells))
	}

	text := security.SanitizeQuestionText(utils.NormalizeText(cells[1]))
	if text == "" {
		return nil, fmt.Errorf("question text is empty")
	}

	var timer *int
	last := len(cells) - 1
	if withTimer {
		t, err := strconv.Atoi(strings.TrimSpace(utils.NormalizeDigits(cells[last])))
		if err != nil {
			return nil, fmt.Errorf("invalid timer %q", cells[last])
		}
		if t < minTimer || t > maxTimer {
			return nil, fmt.Errorf("timer %d outside %d..%d seconds", t, minTimer, maxTimer)
		}
		timer = &t
		last--
	}

	options := cells[2:last]
	if len(options) < minOptions || len(options) > maxOptions {
		return nil, fmt.Errorf("expected %d to %d options, got %d", minOptions, maxOptions, len(options))
	}

	n, ok := utils.FirstNumber(cells[last])
	if !ok || n < 1 || n > len(options) {
		return nil, fmt.Errorf("invalid correct answer indicator %q", cells[last])
	}

	q := &models.Question{
		QuestionText:       text,
		CorrectAnswerIndex: n - 1,
		TimerSeconds:       timer,
	}
	for idx, opt := range options {
		clean := security.SanitizeString(utils.NormalizeText(opt))
		if clean == "" {
			return nil, fmt.Errorf("option %d is empty", idx+1)
		}
		q.Options = append(q.Options, models.AnswerOption{AnswerIndex: idx, AnswerText: clean})
	}
	return q, nil
}

func hasTimerColumn(header []string) bool {
	cells := trimTrailingEmpty(header)
	if len(cells) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(cells[len(cells)-1]), "timer")
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
