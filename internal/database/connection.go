package database

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/trivia_arena/internal/config"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.GetDSN()

	var logLevel gormlogger.LogLevel
	if cfg.AppEnv == "development" {
		logLevel = gormlogger.Info
	} else {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		// Unique violations surface as gorm.ErrDuplicatedKey
		TranslateError:         true,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Answer bursts arrive together at the end of every question
	sqlDB.SetMaxIdleConns(50)
	sqlDB.SetMaxOpenConns(500)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected successfully")
	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Category{},
		&models.Room{},
		&models.Player{},
		&models.Question{},
		&models.AnswerOption{},
		&models.AnswerSubmission{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

type seedQuestion struct {
	text    string
	options []string
	correct int
}

const sampleCategory = "General Knowledge"

var sampleQuestions = []seedQuestion{
	{"What is the capital of France?", []string{"Paris", "London", "Berlin", "Rome"}, 0},
	{"Which planet is known as the Red Planet?", []string{"Earth", "Mars", "Jupiter", "Venus"}, 1},
	{"What is the largest ocean on Earth?", []string{"Atlantic", "Indian", "Pacific", "Arctic"}, 2},
	{"Who is credited with inventing the telephone?", []string{"Thomas Edison", "Alexander Graham Bell", "Nikola Tesla", "Isaac Newton"}, 1},
	{"What is the currency of Japan?", []string{"Yuan", "Won", "Yen", "Ringgit"}, 2},
}

// SeedQuestions makes sure the sample category exists with a full game's
// worth of questions, so a theme-based room can be played on a fresh install.
func SeedQuestions(ctx context.Context, db *gorm.DB) error {
	logger.Info("Checking for sample questions...")

	var category models.Category
	if err := db.WithContext(ctx).
		Where(models.Category{Name: sampleCategory}).
		Attrs(models.Category{Description: "A short warm-up round"}).
		FirstOrCreate(&category).Error; err != nil {
		return fmt.Errorf("failed to seed category: %w", err)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&models.Question{}).Where("category_id = ?", category.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count sample questions: %w", err)
	}
	if count >= int64(len(sampleQuestions)) {
		return nil
	}

	logger.Info("Seeding sample questions...", "category", sampleCategory)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, sq := range sampleQuestions[count:] {
			q := sampleQuestion(category.ID, int(count)+i, sq)
			if err := tx.Create(&q).Error; err != nil {
				return fmt.Errorf("failed to seed question %q: %w", sq.text, err)
			}
		}
		return nil
	})
}

func sampleQuestion(categoryID uint, order int, sq seedQuestion) models.Question {
	id := categoryID
	q := models.Question{
		CategoryID:         &id,
		QuestionText:       sq.text,
		QuestionOrder:      order,
		CorrectAnswerIndex: sq.correct,
	}
	for i, text := range sq.options {
		q.Options = append(q.Options, models.AnswerOption{AnswerIndex: i, AnswerText: text})
	}
	return q
}
