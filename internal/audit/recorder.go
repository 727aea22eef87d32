package audit

/*
Recorder пишет операционные события адаптера (deploy, incident) в структурированный лог.

- Строка лога — это контракт: ее читает лог-коллектор платформы и по ней
  коррелирует инциденты с релизами. Ошибка записи возвращается вызывающему, а не глотается.
- Дополнительно событие публикуется в Redis Pub/Sub для alerting-пайплайна.
  Канал — best effort: сбой публикации логируется как warn и не валит запрос.
- Дедупликации нет: одинаковый deploy_id дважды дает две строки.
*/

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/infra"
)

const publishTimeout = time.Second

// Publisher — подмножество *redis.Client, нужное для веера событий.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

type Recorder struct {
	core   zapcore.Core
	pub    Publisher // nil — публикация выключена
	logger *zap.Logger
}

func NewRecorder(core zapcore.Core, pub Publisher, logger *zap.Logger) *Recorder {
	return &Recorder{
		core:   core,
		pub:    pub,
		logger: logger.Named("recorder"),
	}
}

// RecordDeploy пишет одну строку level=info, event=deploy.
func (r *Recorder) RecordDeploy(ctx context.Context, ev domain.DeployEvent) error {
	fields := []zapcore.Field{
		zap.String("source", domain.EventSource),
		zap.String("site_id", ev.SiteID),
		zap.String("deploy_id", ev.DeployID),
		zap.String("environment", ev.Environment),
		zap.String("timestamp", ev.Timestamp),
		zap.Any("metadata", ev.Metadata),
	}
	if err := r.write(zapcore.InfoLevel, "deploy", fields); err != nil {
		return fmt.Errorf("emit deploy event: %w", err)
	}

	r.publish(ctx, infra.RedisChanDeployEvents, map[string]any{
		"level":       zapcore.InfoLevel.String(),
		"source":      domain.EventSource,
		"event":       "deploy",
		"site_id":     ev.SiteID,
		"deploy_id":   ev.DeployID,
		"environment": ev.Environment,
		"timestamp":   ev.Timestamp,
		"metadata":    ev.Metadata,
	})
	return nil
}

// RecordIncident пишет одну строку с уровнем, выведенным из severity.
func (r *Recorder) RecordIncident(ctx context.Context, e domain.IncidentLogEntry) error {
	lvl := e.Severity.Level()
	fields := []zapcore.Field{
		zap.String("source", domain.EventSource),
		zap.String("site_id", e.SiteID),
		zap.String("severity", string(e.Severity)),
		zap.String("type", e.Type),
		zap.String("message", e.Message),
		zap.Stringp("path", e.Path),
		zap.String("timestamp", e.Timestamp),
		zap.Any("metadata", e.Metadata),
	}
	if err := r.write(lvl, "incident", fields); err != nil {
		return fmt.Errorf("emit incident: %w", err)
	}

	r.publish(ctx, infra.RedisChanIncidentEvents, map[string]any{
		"level":     lvl.String(),
		"source":    domain.EventSource,
		"event":     "incident",
		"site_id":   e.SiteID,
		"severity":  e.Severity,
		"type":      e.Type,
		"message":   e.Message,
		"path":      e.Path,
		"timestamp": e.Timestamp,
		"metadata":  e.Metadata,
	})
	return nil
}

// write идет напрямую в Core, чтобы получить ошибку записи.
func (r *Recorder) write(lvl zapcore.Level, event string, fields []zapcore.Field) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("event sink panicked: %v", p)
		}
	}()

	if !r.core.Enabled(lvl) {
		return nil
	}
	return r.core.Write(zapcore.Entry{Level: lvl, Time: time.Now(), Message: event}, fields)
}

func (r *Recorder) publish(ctx context.Context, channel string, msg map[string]any) {
	if r.pub == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Warn("event not published: encode failed", zap.String("channel", channel), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := r.pub.Publish(ctx, channel, payload).Err(); err != nil {
		r.logger.Warn("event signal delivery failed",
			zap.String("channel", channel),
			zap.Error(err))
	}
}
