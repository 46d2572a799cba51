package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"photocontest/contexts/community-experience/photo-contest/domain/entities"
	"photocontest/contexts/community-experience/photo-contest/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultListLimit = 20

// Repository archives announcements. Contest state is never restored from it.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&contestResultModel{})
}

func (r *Repository) SaveAnnouncement(ctx context.Context, announcement entities.Announcement) error {
	row, err := contestResultModelFromEntity(announcement)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "announcement_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		r.logger.Debug("announcement already archived",
			"event", "contest_announcement_duplicate",
			"module", "community-experience/photo-contest",
			"layer", "adapter",
			"announcement_id", row.AnnouncementID,
		)
	}
	return nil
}

func (r *Repository) ListAnnouncements(ctx context.Context, limit int) ([]entities.Announcement, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var rows []contestResultModel
	err := r.db.WithContext(ctx).
		Order("announced_at DESC").
		Order("announcement_id DESC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}

	items := make([]entities.Announcement, 0, len(rows))
	for _, row := range rows {
		item, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *Repository) GetAnnouncement(ctx context.Context, announcementID string) (entities.Announcement, bool, error) {
	var row contestResultModel
	err := r.db.WithContext(ctx).
		Where("announcement_id = ?", strings.TrimSpace(announcementID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Announcement{}, false, nil
		}
		return entities.Announcement{}, false, err
	}
	item, err := row.toEntity()
	if err != nil {
		return entities.Announcement{}, false, err
	}
	return item, true, nil
}

type contestResultModel struct {
	AnnouncementID string    `gorm:"column:announcement_id;primaryKey"`
	RunID          string    `gorm:"column:run_id;index"`
	Round          int       `gorm:"column:round"`
	Trigger        string    `gorm:"column:trigger_kind"`
	Winners        string    `gorm:"column:winners;type:text"`
	MaxVotes       int       `gorm:"column:max_votes"`
	DisplayVotes   int       `gorm:"column:display_votes"`
	TieFinal       bool      `gorm:"column:tie_final"`
	NoVotes        bool      `gorm:"column:no_votes"`
	AnnouncedAt    time.Time `gorm:"column:announced_at;index"`
}

func (contestResultModel) TableName() string {
	return "contest_results"
}

type winnerColumn struct {
	BallotID     string `json:"ballot_id"`
	SubmissionID string `json:"submission_id"`
	OwnerID      string `json:"owner_id"`
	MediaURL     string `json:"media_url"`
}

func contestResultModelFromEntity(item entities.Announcement) (contestResultModel, error) {
	winners := make([]winnerColumn, 0, len(item.Winners))
	for _, winner := range item.Winners {
		winners = append(winners, winnerColumn{
			BallotID:     winner.BallotID,
			SubmissionID: winner.SubmissionID,
			OwnerID:      winner.OwnerID,
			MediaURL:     winner.MediaURL,
		})
	}
	encoded, err := json.Marshal(winners)
	if err != nil {
		return contestResultModel{}, err
	}
	return contestResultModel{
		AnnouncementID: strings.TrimSpace(item.AnnouncementID),
		RunID:          strings.TrimSpace(item.RunID),
		Round:          item.Round,
		Trigger:        string(item.Trigger),
		Winners:        string(encoded),
		MaxVotes:       item.MaxVotes,
		DisplayVotes:   item.DisplayVotes,
		TieFinal:       item.TieFinal,
		NoVotes:        item.NoVotes,
		AnnouncedAt:    item.AnnouncedAt.UTC(),
	}, nil
}

func (m contestResultModel) toEntity() (entities.Announcement, error) {
	var winners []winnerColumn
	if strings.TrimSpace(m.Winners) != "" {
		if err := json.Unmarshal([]byte(m.Winners), &winners); err != nil {
			return entities.Announcement{}, err
		}
	}
	item := entities.Announcement{
		AnnouncementID: m.AnnouncementID,
		RunID:          m.RunID,
		Round:          m.Round,
		Trigger:        entities.ResolutionTrigger(m.Trigger),
		Winners:        make([]entities.Winner, 0, len(winners)),
		MaxVotes:       m.MaxVotes,
		DisplayVotes:   m.DisplayVotes,
		TieFinal:       m.TieFinal,
		NoVotes:        m.NoVotes,
		AnnouncedAt:    m.AnnouncedAt.UTC(),
	}
	for _, winner := range winners {
		item.Winners = append(item.Winners, entities.Winner{
			BallotID:     winner.BallotID,
			SubmissionID: winner.SubmissionID,
			OwnerID:      winner.OwnerID,
			MediaURL:     winner.MediaURL,
		})
	}
	return item, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ResultArchive = (*Repository)(nil)
