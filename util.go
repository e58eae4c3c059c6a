package factum

import "time"

// Now returns the current time as milliseconds since the Unix epoch,
// UTC.
func Now() int64 {
	return TimeToInt(time.Now().UTC())
}

// IntToTime converts milliseconds since the Unix epoch (UTC) to a
// time.Time. The round trip through milliseconds is lossy below 1ms.
func IntToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToInt converts a time.Time to milliseconds since the Unix epoch,
// UTC. The round trip through milliseconds is lossy below 1ms.
func TimeToInt(t time.Time) int64 {
	return t.UnixMilli()
}
