package redis

import (
	"context"
	"encoding/json"
	"strings"

	"frmon/internal/application/port"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Repo 把报告写入 Redis Stream 并 PUBLISH 一份给在线订阅者
type Repo struct {
	rdb          *redis.Client
	prefix       string
	reportStream string
	reportChan   string
	maxLen       int64
}

// ReportMessage is the JSON published on the report channel.
type ReportMessage struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	TsMs   int64  `json:"ts_ms"`
	Source string `json:"source"`
}

func New(rdb *redis.Client, prefix, reportStream, reportChan string, maxLen int64) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "frmon"
	}
	if strings.TrimSpace(reportStream) == "" {
		reportStream = prefix + ":reports"
	}
	if strings.TrimSpace(reportChan) == "" {
		reportChan = prefix + ":reports:pub"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		reportStream: reportStream,
		reportChan:   reportChan,
		maxLen:       maxLen,
	}
}

func (r *Repo) Stream() string  { return r.reportStream }
func (r *Repo) Channel() string { return r.reportChan }

func (r *Repo) SaveReport(ctx context.Context, rep port.Report) error {
	id := rep.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := rep.CreatedAt.UnixMilli()

	// 1) Stream: XADD <stream> MAXLEN ~ n * id kind text ts_ms
	args := &redis.XAddArgs{
		Stream: r.reportStream,
		Values: map[string]any{
			"id":    id,
			"kind":  string(rep.Kind),
			"text":  rep.Text,
			"ts_ms": ts,
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	if err := r.rdb.XAdd(ctx, args).Err(); err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, err := json.Marshal(ReportMessage{ID: id, Kind: string(rep.Kind), Text: rep.Text, TsMs: ts, Source: r.prefix})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.reportChan, string(b)).Err()
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.ReportRepository = (*Repo)(nil)
