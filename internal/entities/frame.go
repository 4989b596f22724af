package entities

import "time"

// FrameDescriptor is one timestamped radar image locator
type FrameDescriptor struct {
	Locator   string    // Fully resolved image URL
	Timestamp time.Time // Scan time of the image
}

// Timeline is an ordered list of frames, oldest first
type Timeline []FrameDescriptor

// Newest returns the most recent frame of the timeline
func (tl Timeline) Newest() (FrameDescriptor, bool) {
	if len(tl) == 0 {
		return FrameDescriptor{}, false
	}
	return tl[len(tl)-1], true
}

// Locators returns the image locators of every frame in order
func (tl Timeline) Locators() []string {
	out := make([]string, len(tl))
	for i, f := range tl {
		out[i] = f.Locator
	}
	return out
}
