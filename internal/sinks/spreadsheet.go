package sinks

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/sinfolonokojo/mt5-backend/internal/domain"
	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

// Spreadsheet renders the aggregated account view to CSV and uploads it to
// an S3-compatible bucket, the nearest pack-native substitute for a
// spreadsheet push. It uploads only when Sync is called; nothing runs it
// periodically.
type Spreadsheet struct {
	bucket    string
	keyPrefix string
	uploader  *manager.Uploader
	log       zerolog.Logger
}

// NewSpreadsheet builds a Spreadsheet sink for the given bucket/region. An
// empty bucket disables uploads — Sync becomes a no-op — so the sink is
// safe to construct even when export is not configured.
func NewSpreadsheet(ctx context.Context, bucket, region, keyPrefix string, log zerolog.Logger) (*Spreadsheet, error) {
	s := &Spreadsheet{
		bucket:    bucket,
		keyPrefix: keyPrefix,
		log:       log.With().Str("component", "spreadsheet_sink").Logger(),
	}
	if bucket == "" {
		return s, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	s.uploader = manager.NewUploader(client)
	return s, nil
}

// Name identifies this sink in logs.
func (s *Spreadsheet) Name() string { return "spreadsheet_export" }

// Handle ignores every event, fleet-refresh events included; uploads
// happen only through Sync.
func (s *Spreadsheet) Handle(evt events.Event) error {
	if evt.Type != events.AccountsRefreshed {
		return nil
	}
	return nil
}

// Sync renders accounts to CSV and uploads it under a timestamped key. A
// no-op (returns nil) when no bucket is configured.
func (s *Spreadsheet) Sync(ctx context.Context, accounts []domain.AccountSnapshot) error {
	if s.uploader == nil {
		return nil
	}

	buf, err := renderCSV(accounts)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}

	key := fmt.Sprintf("%s/accounts-%d.csv", s.keyPrefix, time.Now().UTC().Unix())
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: awsString("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("upload accounts csv: %w", err)
	}
	s.log.Info().Str("key", key).Int("accounts", len(accounts)).Msg("uploaded accounts snapshot")
	return nil
}

func renderCSV(accounts []domain.AccountSnapshot) (*bytes.Buffer, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)

	header := []string{
		"account_id", "display_name", "balance", "status", "days_operating",
		"has_open_position", "owner_agent", "holder", "prop_firm",
		"initial_balance", "phase", "vs_group", "last_updated",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, a := range accounts {
		row := []string{
			strconv.FormatUint(a.AccountID, 10),
			a.DisplayName,
			strconv.FormatFloat(a.Balance, 'f', 2, 64),
			string(a.Status),
			strconv.FormatUint(uint64(a.DaysOperating), 10),
			strconv.FormatBool(a.HasOpenPosition),
			a.OwnerAgent,
			a.Holder,
			a.PropFirm,
			strconv.FormatFloat(a.InitialBalance, 'f', 2, 64),
			a.Phase,
			a.VSGroup,
			a.LastUpdated.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf, w.Error()
}

func awsString(s string) *string { return &s }
