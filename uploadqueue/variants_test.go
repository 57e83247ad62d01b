package uploadqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognitedata/extractor-utils-core/sink"
)

type fakeSink struct {
	insertedPoints map[sink.SeriesKey][]sink.Datapoint
	insertedEvents []sink.Event
	probeErr       error
}

func (f *fakeSink) EnsureExists(context.Context, []string, sink.RetryMode, sink.SanitationMode) (sink.EnsureExistsResult, error) {
	return sink.EnsureExistsResult{}, nil
}

func (f *fakeSink) InsertPoints(_ context.Context, byKey map[sink.SeriesKey][]sink.Datapoint, _ sink.SanitationMode, _ sink.RetryMode) (sink.InsertResult, error) {
	f.insertedPoints = byKey
	return sink.InsertResult{}, nil
}

func (f *fakeSink) InsertEvents(_ context.Context, events []sink.Event, _ sink.SanitationMode, _ sink.RetryMode) (sink.InsertResult, error) {
	f.insertedEvents = events
	return sink.InsertResult{}, nil
}

func (f *fakeSink) ProbeConnectivity(context.Context) error { return f.probeErr }

func TestPointsUploaderGroupsBySeries(t *testing.T) {
	fs := &fakeSink{}
	u := PointsUploader{Sink: fs}

	keyA := sink.SeriesKey{ExternalID: "a"}
	keyB := sink.SeriesKey{ExternalID: "b"}
	items := []PointRecord{
		{Key: keyA, Points: []sink.Datapoint{{TimestampMs: 1, Value: 1}}},
		{Key: keyB, Points: []sink.Datapoint{{TimestampMs: 2, Value: 2}}},
		{Key: keyA, Points: []sink.Datapoint{{TimestampMs: 3, Value: 3}}},
	}

	result := u.Upload(context.Background(), items)
	require.NoError(t, result.Err)
	require.Len(t, fs.insertedPoints[keyA], 2)
	require.Len(t, fs.insertedPoints[keyB], 1)
}

func TestEventsUploaderPassesThrough(t *testing.T) {
	fs := &fakeSink{}
	u := EventsUploader{Sink: fs}

	events := []sink.Event{{ExternalID: "e1"}, {ExternalID: "e2"}}
	result := u.Upload(context.Background(), events)
	require.NoError(t, result.Err)
	assert.Equal(t, events, fs.insertedEvents)
}

func TestProbeConnectivityDelegatesToSink(t *testing.T) {
	fs := &fakeSink{}
	u := PointsUploader{Sink: fs}
	assert.NoError(t, u.ProbeConnectivity(context.Background()))
}
