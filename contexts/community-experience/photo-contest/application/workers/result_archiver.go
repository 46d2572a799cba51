package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	application "photocontest/contexts/community-experience/photo-contest/application"
	"photocontest/contexts/community-experience/photo-contest/application/commands"
	"photocontest/contexts/community-experience/photo-contest/ports"
)

const defaultArchiveCG = "photo-contest-archive-cg"

// ResultArchiver stores every announced result. The archive is history only;
// contest state is never rebuilt from it.
type ResultArchiver struct {
	Subscriber    ports.EventSubscriber
	Archive       ports.ResultArchive
	ConsumerGroup string
	Disabled      bool
	Logger        *slog.Logger
}

func (a ResultArchiver) Start(ctx context.Context) error {
	logger := application.ResolveLogger(a.Logger)
	if a.Disabled || a.Archive == nil {
		logger.Info("result archiver disabled",
			"event", "contest_result_archiver_disabled",
			"module", application.ModuleName,
			"layer", "worker",
		)
		return nil
	}
	group := strings.TrimSpace(a.ConsumerGroup)
	if group == "" {
		group = defaultArchiveCG
	}
	if err := a.Subscriber.Subscribe(ctx, ports.TopicResultAnnounced, group, a.handle); err != nil {
		logger.Error("result archiver subscribe failed",
			"event", "contest_result_archiver_subscribe_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"topic", ports.TopicResultAnnounced,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (a ResultArchiver) handle(ctx context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(a.Logger)
	var payload ports.ResultAnnouncedPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		logger.Error("result payload decode failed",
			"event", "contest_result_decode_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}
	announcement := commands.AnnouncementFromPayload(payload)
	if err := a.Archive.SaveAnnouncement(ctx, announcement); err != nil {
		logger.Error("result not archived",
			"event", "contest_result_archive_failed",
			"module", application.ModuleName,
			"layer", "worker",
			"announcement_id", announcement.AnnouncementID,
			"error", err.Error(),
		)
		return err
	}
	logger.Info("result archived",
		"event", "contest_result_archived",
		"module", application.ModuleName,
		"layer", "worker",
		"announcement_id", announcement.AnnouncementID,
		"run_id", announcement.RunID,
		"round", announcement.Round,
	)
	return nil
}
