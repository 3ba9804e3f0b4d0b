package anomaly

import (
	"testing"

	"github.com/resto-planning/pointage-backend-go/internal/domain/anomaly"
	"github.com/resto-planning/pointage-backend-go/internal/domain/shift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func work(start, end string) shift.Segment {
	return shift.Segment{Start: start, End: end, Kind: shift.SegmentKindWork}
}

func pause(start, end string) shift.Segment {
	return shift.Segment{Start: start, End: end, Kind: shift.SegmentKindBreak}
}

func TestClassify_ContinuousWithShortBreak(t *testing.T) {
	c := Classify([]shift.Segment{
		work("07:00", "14:00"),
		pause("14:00", "14:30"),
		work("14:30", "19:00"),
	})

	assert.Equal(t, anomaly.SlotContinuous, c.Slot)
	assert.Equal(t, 690, c.NetMinutes)
	assert.Equal(t, 30, c.BreakMinutes)
	assert.False(t, c.HasGap)
	assert.Equal(t, "07:00", FormatClock(c.EffectiveStart))
	assert.Equal(t, "19:00", FormatClock(c.EffectiveEnd))
	assert.False(t, c.InvalidSegments)
}

func TestClassify_LongGapIsSplitShift(t *testing.T) {
	c := Classify([]shift.Segment{
		work("07:00", "11:00"),
		work("17:00", "21:00"),
	})

	assert.True(t, c.HasGap)
	assert.Equal(t, anomaly.SlotSplitShift, c.Slot)
	assert.Equal(t, 480, c.NetMinutes)
	assert.Len(t, c.WorkWindows, 2)
}

func TestClassify_GapExactlyAtThresholdIsSplit(t *testing.T) {
	c := Classify([]shift.Segment{
		work("10:00", "13:00"),
		work("15:00", "18:00"),
	})

	assert.True(t, c.HasGap)
	assert.Equal(t, anomaly.SlotSplitShift, c.Slot)
}

func TestClassify_SlotByHours(t *testing.T) {
	cases := []struct {
		name     string
		segments []shift.Segment
		want     anomaly.Slot
	}{
		{"lunch service", []shift.Segment{work("10:00", "15:00")}, anomaly.SlotMidday},
		{"lunch ending at 17h", []shift.Segment{work("09:00", "17:30")}, anomaly.SlotMidday},
		{"dinner service", []shift.Segment{work("18:00", "23:00")}, anomaly.SlotEvening},
		{"dinner past midnight", []shift.Segment{work("19:00", "00:30")}, anomaly.SlotEvening},
		{"afternoon to late night", []shift.Segment{work("15:00", "23:00")}, anomaly.SlotEvening},
		{"full day", []shift.Segment{work("08:00", "20:00")}, anomaly.SlotContinuous},
		{"afternoon fallback", []shift.Segment{work("14:00", "20:00")}, anomaly.SlotMidday},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.segments).Slot)
		})
	}
}

func TestClassify_EmptyShift(t *testing.T) {
	c := Classify(nil)

	assert.Equal(t, anomaly.SlotNone, c.Slot)
	assert.Zero(t, c.NetMinutes)
	assert.Zero(t, c.BreakMinutes)
	assert.False(t, c.IsWorking())
}

func TestClassify_BreakOnlyIsNotWorking(t *testing.T) {
	c := Classify([]shift.Segment{pause("12:00", "13:00")})

	assert.False(t, c.IsWorking())
	assert.Equal(t, anomaly.SlotNone, c.Slot)
	assert.Equal(t, 60, c.BreakMinutes)
}

func TestClassify_SegmentsAcrossMidnight(t *testing.T) {
	c := Classify([]shift.Segment{
		work("19:00", "23:00"),
		pause("23:00", "23:30"),
		work("23:30", "01:00"),
		work("01:00", "02:00"),
	})

	require.False(t, c.InvalidSegments)
	assert.Equal(t, 390, c.NetMinutes)
	assert.Equal(t, 19*60, c.EffectiveStart)
	assert.Equal(t, 26*60, c.EffectiveEnd)
	assert.Equal(t, "02:00", FormatClock(c.EffectiveEnd))
	assert.Equal(t, anomaly.SlotEvening, c.Slot)
}

func TestClassify_SegmentStartingAfterMidnight(t *testing.T) {
	c := Classify([]shift.Segment{
		work("20:00", "23:30"),
		work("00:00", "01:30"),
	})

	require.False(t, c.InvalidSegments)
	assert.Equal(t, 300, c.NetMinutes)
	assert.Equal(t, 25*60+30, c.EffectiveEnd)
	assert.False(t, c.HasGap)
}

func TestClassify_MalformedSegmentIsSkippedAndFlagged(t *testing.T) {
	c := Classify([]shift.Segment{
		work("09:00", "12:00"),
		work("25:00", "26:00"),
		work("13:00", "15:00"),
	})

	assert.True(t, c.InvalidSegments)
	assert.ErrorIs(t, c.Err, shift.ErrInvalidSegmentTime)
	assert.Equal(t, 300, c.NetMinutes)
}

func TestClassify_UnknownKindIsFlagged(t *testing.T) {
	c := Classify([]shift.Segment{{Start: "09:00", End: "12:00", Kind: "nap"}})

	assert.True(t, c.InvalidSegments)
	assert.ErrorIs(t, c.Err, shift.ErrInvalidSegmentKind)
	assert.False(t, c.IsWorking())
}

func TestClassify_OverlappingSegmentIsFlagged(t *testing.T) {
	c := Classify([]shift.Segment{
		work("09:00", "13:00"),
		work("12:00", "15:00"),
	})

	assert.True(t, c.InvalidSegments)
	assert.ErrorIs(t, c.Err, shift.ErrOverlappingSegments)
	assert.Equal(t, 240, c.NetMinutes)
}

func TestClassify_CustomGap(t *testing.T) {
	segments := []shift.Segment{work("10:00", "13:00"), work("14:30", "18:00")}

	assert.False(t, ClassifyWithGap(segments, 120).HasGap)
	assert.True(t, ClassifyWithGap(segments, 90).HasGap)
}

func TestClassify_EffectiveWindowRoundTrip(t *testing.T) {
	shifts := [][]shift.Segment{
		{work("07:00", "14:00"), pause("14:00", "14:30"), work("14:30", "19:00")},
		{work("19:00", "23:00"), pause("23:00", "23:30"), work("23:30", "01:00")},
		{work("11:00", "15:00")},
		{work("18:30", "21:00"), pause("21:00", "21:15"), work("21:15", "23:45")},
	}
	for _, segments := range shifts {
		original := Classify(segments)
		single := Classify([]shift.Segment{
			work(FormatClock(original.EffectiveStart), FormatClock(original.EffectiveEnd)),
		})

		assert.Equal(t, original.NetMinutes, single.NetMinutes-original.BreakMinutes, "segments %v", segments)
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 465, m)

	for _, bad := range []string{"", "7h45", "24:00", "12:60", "abc"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, shift.ErrInvalidSegmentTime, bad)
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:30", FormatClock(24*60+30))
	assert.Equal(t, "09:05", FormatClock(545))
	assert.Equal(t, "23:00", FormatClock(-60))
}
