// Package timeline builds the ordered frame list of a radar loop
package timeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/radar-loop/internal/entities"
)

// ErrInvalidProfile is returned for profiles that cannot produce frames
var ErrInvalidProfile = errors.New("invalid region profile")

const (
	stampLayout   = "20060102150405"
	displayLayout = "2006년 01월 02일 15시 04분"
)

// FormatStamp renders t as the compact token used in image locators
func FormatStamp(t time.Time) string {
	return t.Format(stampLayout)
}

// FormatDisplay renders t as the label shown next to a frame
func FormatDisplay(t time.Time) string {
	return t.Format(displayLayout)
}

// FloorToInterval rounds t down to the last multiple of intervalMinutes past the hour.
// Seconds and sub-second components are dropped.
func FloorToInterval(t time.Time, intervalMinutes int) time.Time {
	minute := (t.Minute() / intervalMinutes) * intervalMinutes
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// Build produces the frames of profile ending at reference, oldest first.
// params are substituted into {name} placeholders of the locator template;
// {tm} always receives the frame stamp.
func Build(profile entities.RegionProfile, reference time.Time, params map[string]string) (entities.Timeline, error) {
	if profile.FrameCount <= 0 {
		return nil, fmt.Errorf("%w: region %q has frame count %d", ErrInvalidProfile, profile.Key, profile.FrameCount)
	}
	if profile.FrameIntervalMinutes <= 0 {
		return nil, fmt.Errorf("%w: region %q has frame interval %d", ErrInvalidProfile, profile.Key, profile.FrameIntervalMinutes)
	}

	newest := FloorToInterval(reference, profile.FrameIntervalMinutes)
	step := time.Duration(profile.FrameIntervalMinutes) * time.Minute

	pairs := make([]string, 0, 2*len(params))
	for name, value := range params {
		if name == "tm" {
			continue
		}
		pairs = append(pairs, "{"+name+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	template := replacer.Replace(profile.LocatorTemplate)

	frames := make(entities.Timeline, profile.FrameCount)
	for i := 0; i < profile.FrameCount; i++ {
		ts := newest.Add(-time.Duration(i) * step)
		frames[profile.FrameCount-1-i] = entities.FrameDescriptor{
			Locator:   strings.ReplaceAll(template, "{tm}", FormatStamp(ts)),
			Timestamp: ts,
		}
	}
	return frames, nil
}
