package uploadqueue

import (
	"context"

	"github.com/cognitedata/extractor-utils-core/sink"
)

// PointsUploader adapts a sink.Sink's InsertPoints call to Uploader[PointRecord],
// grouping the flushed batch's per-series records into the map InsertPoints
// expects.
type PointsUploader struct {
	Sink           sink.Sink
	SanitationMode sink.SanitationMode
	RetryMode      sink.RetryMode
}

func (u PointsUploader) Upload(ctx context.Context, items []PointRecord) Result[PointRecord] {
	byKey := make(map[sink.SeriesKey][]sink.Datapoint, len(items))
	for _, rec := range items {
		byKey[rec.Key] = append(byKey[rec.Key], rec.Points...)
	}

	res, err := u.Sink.InsertPoints(ctx, byKey, u.SanitationMode, u.RetryMode)
	if err != nil {
		return Result[PointRecord]{Err: err}
	}

	skipped := skippedPointRecords(res.Skipped)
	return Result[PointRecord]{Uploaded: items, Skipped: skipped, Err: res.Err}
}

func (u PointsUploader) ProbeConnectivity(ctx context.Context) error {
	return u.Sink.ProbeConnectivity(ctx)
}

// skippedPointRecords collapses a flat SkippedDatapoint list back into
// per-series PointRecords, preserving the grouping EncodeBatch expects if a
// caller chooses to re-spill just the skipped subset.
func skippedPointRecords(skipped []sink.SkippedDatapoint) []PointRecord {
	if len(skipped) == 0 {
		return nil
	}
	byKey := make(map[sink.SeriesKey][]sink.Datapoint)
	order := make([]sink.SeriesKey, 0)
	for _, s := range skipped {
		if _, ok := byKey[s.Key]; !ok {
			order = append(order, s.Key)
		}
		byKey[s.Key] = append(byKey[s.Key], s.Datapoint)
	}
	out := make([]PointRecord, 0, len(order))
	for _, k := range order {
		out = append(out, PointRecord{Key: k, Points: byKey[k]})
	}
	return out
}

// EventsUploader adapts a sink.Sink's InsertEvents call to Uploader[sink.Event].
type EventsUploader struct {
	Sink           sink.Sink
	SanitationMode sink.SanitationMode
	RetryMode      sink.RetryMode
}

func (u EventsUploader) Upload(ctx context.Context, items []sink.Event) Result[sink.Event] {
	res, err := u.Sink.InsertEvents(ctx, items, u.SanitationMode, u.RetryMode)
	if err != nil {
		return Result[sink.Event]{Err: err}
	}
	return Result[sink.Event]{Uploaded: items, Err: res.Err}
}

func (u EventsUploader) ProbeConnectivity(ctx context.Context) error {
	return u.Sink.ProbeConnectivity(ctx)
}
