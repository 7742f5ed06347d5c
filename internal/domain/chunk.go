package domain

import "time"

// FrameChunk is one unit of captured video data.
// FrameData always holds decoded bytes; wire encodings are the codec's job.
type FrameChunk struct {
	SourceID   string
	CameraID   string
	FrameData  []byte
	CapturedAt time.Time
}

// PartitionKey keeps every frame of one physical source in one ordered lane.
func (c FrameChunk) PartitionKey() string {
	return c.SourceID
}
