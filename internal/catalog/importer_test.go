package catalog

import (
	"bytes"
	"context"
	"testing"

	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/internal/repositories"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, sheets map[string][][]interface{}, order ...string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func questionsOf(t *testing.T, store *repositories.MemoryStore, categoryID uint) []models.Question {
	t.Helper()
	room := &models.Room{IsThemeBased: true, CategoryID: &categoryID}
	questions, err := store.ListQuestions(context.Background(), room)
	require.NoError(t, err)
	return questions
}

func TestImporter_ImportsSheetsAsCategories(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store := repositories.NewMemoryStore()

	buf := workbook(t, map[string][][]interface{}{
		"Science": {
			{"ID", "Question", "A", "B", "C", "D", "Answer"},
			{1, "Which planet is red?", "Earth", "Mars", "Venus", "Jupiter", "گزینه ۲"},
			{2, "H2O is?", "Water", "Salt", "1"},
			{3, "Broken indicator", "x", "y", "z", "w", "Option 9"},
			{4, "Too short", "x"},
		},
		"Geography": {
			{"ID", "Question", "A", "B", "C", "Answer", "Timer"},
			{1, "Largest ocean?", "Atlantic", "Pacific", "Indian", "Option 2", 20},
			{2, "Bad timer", "a", "b", "c", "1", 2},
		},
		"Empty": {
			{"ID", "Question"},
		},
	}, "Science", "Geography", "Empty")

	report, err := NewImporter(store, store).ImportReader(ctx, buf)
	req.NoError(err)
	req.Equal(2, report.Categories)
	req.Equal(3, report.Imported)
	req.Len(report.Skipped, 3)

	categories, err := store.ListCategories(ctx)
	req.NoError(err)
	req.Len(categories, 2)
	req.Equal("Geography", categories[0].Name)
	req.Equal("Science", categories[1].Name)

	science := questionsOf(t, store, categories[1].ID)
	req.Len(science, 2)
	req.Equal("Which planet is red?", science[0].QuestionText)
	req.Equal(1, science[0].CorrectAnswerIndex)
	req.Equal("Mars", science[0].CorrectAnswerText())
	req.Len(science[1].Options, 2)
	req.Equal(0, science[0].QuestionOrder)
	req.Equal(1, science[1].QuestionOrder)

	geo := questionsOf(t, store, categories[0].ID)
	req.Len(geo, 1)
	req.NotNil(geo[0].TimerSeconds)
	req.Equal(20, *geo[0].TimerSeconds)
	req.Equal("Pacific", geo[0].CorrectAnswerText())
}

func TestImporter_AppendsAfterExistingQuestions(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	sheets := map[string][][]interface{}{
		"Music": {
			{"ID", "Question", "A", "B", "Answer"},
			{1, "Beethoven wrote how many symphonies?", "Nine", "Five", "1"},
		},
	}

	for i := 0; i < 2; i++ {
		_, err := NewImporter(store, store).ImportReader(ctx, workbook(t, sheets, "Music"))
		require.NoError(t, err)
	}

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)

	questions := questionsOf(t, store, categories[0].ID)
	require.Len(t, questions, 2)
	require.Equal(t, 0, questions[0].QuestionOrder)
	require.Equal(t, 1, questions[1].QuestionOrder)
}

func TestImporter_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	buf := workbook(t, map[string][][]interface{}{
		"Art": {
			{"ID", "Question", "A", "B", "Answer"},
			{1, "Who painted the Mona Lisa?", "Da Vinci", "Monet", "1"},
		},
	}, "Art")

	report, err := NewImporter(store, store, DryRun()).ImportReader(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, 1, report.Imported)

	categories, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Empty(t, categories)
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name      string
		row       []string
		withTimer bool
		wantErr   bool
		correct   int
		options   int
	}{
		{name: "persian indicator", row: []string{"1", "Q", "a", "b", "c", "d", "گزینه ۳"}, correct: 2, options: 4},
		{name: "arabic digits", row: []string{"1", "Q", "a", "b", "٢"}, correct: 1, options: 2},
		{name: "trailing blanks ignored", row: []string{"1", "Q", "a", "b", "c", "2", "", ""}, correct: 1, options: 3},
		{name: "markup stripped from text", row: []string{"1", "<b>Q</b>", "a", "b", "1"}, correct: 0, options: 2},
		{name: "with timer", row: []string{"1", "Q", "a", "b", "2", "30"}, withTimer: true, correct: 1, options: 2},
		{name: "indicator out of range", row: []string{"1", "Q", "a", "b", "3"}, wantErr: true},
		{name: "no indicator", row: []string{"1", "Q", "a", "b", "c"}, wantErr: true},
		{name: "empty text", row: []string{"1", " ", "a", "b", "1"}, wantErr: true},
		{name: "empty option", row: []string{"1", "Q", "a", " ", "c", "1"}, wantErr: true},
		{name: "timer not a number", row: []string{"1", "Q", "a", "b", "1", "soon"}, withTimer: true, wantErr: true},
		{name: "too many options", row: []string{"1", "Q", "1", "2", "3", "4", "5", "6", "7", "8", "9", "1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseRow(tt.row, tt.withTimer)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.correct, q.CorrectAnswerIndex)
			require.Len(t, q.Options, tt.options)
			require.Equal(t, "Q", q.QuestionText)
		})
	}
}
