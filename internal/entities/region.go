// Package entities contains the core domain objects for the radar-loop application
package entities

import "sort"

// kmaBaseURL is the KMA composite radar image endpoint shared by every region
const kmaBaseURL = "https://radar.kma.go.kr/cgi-bin/center/nph-rdr_cmp_img?cmp=HSP&color=C4&qcd=HSO&obs=ECHO&map=HB&size=1000&gis=1&legend=1&aws=1&gov=KMA&gc=T&gc_itv=60"

// DefaultRegion is used when no region has been selected yet
const DefaultRegion = "nationwide"

// RegionProfile describes one geographic view of the radar imagery
type RegionProfile struct {
	Key                  string // Selector key, e.g. "seoul"
	Name                 string // Human readable name
	LocatorTemplate      string // Image URL with {center}, {wv} and {tm} placeholders
	FrameIntervalMinutes int    // Minutes between two consecutive scans
	FrameCount           int    // Number of frames in one loop
}

func regionTemplate(view string) string {
	return kmaBaseURL + "&center={center}&wv={wv}" + view + "&tm={tm}"
}

var regions = map[string]RegionProfile{
	"nationwide": {
		Key:                  "nationwide",
		Name:                 "전국",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=35.90&lon=127.80&zoom=2&ht=1000"),
		FrameIntervalMinutes: 5,
		FrameCount:           48,
	},
	"seoul": {
		Key:                  "seoul",
		Name:                 "서울·경기",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=37.57&lon=126.97&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"chungcheong": {
		Key:                  "chungcheong",
		Name:                 "충청",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=36.49&lon=127.24&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"honam": {
		Key:                  "honam",
		Name:                 "호남",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=35.17&lon=126.89&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"gyeongnam": {
		Key:                  "gyeongnam",
		Name:                 "경남",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=35.22&lon=128.67&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"gyeongbuk": {
		Key:                  "gyeongbuk",
		Name:                 "경북",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=36.25&lon=128.56&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"gangwon": {
		Key:                  "gangwon",
		Name:                 "강원",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=37.78&lon=128.40&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"jeju": {
		Key:                  "jeju",
		Name:                 "제주",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=33.38&lon=126.53&zoom=4.9&ht=1000&topo=1"),
		FrameIntervalMinutes: 5,
		FrameCount:           24,
	},
	"eastAsia": {
		Key:                  "eastAsia",
		Name:                 "동아시아",
		LocatorTemplate:      regionTemplate("&lonlat=0&lat=33.11&lon=126.27&zoom=0.5&ht=1000&topo=0"),
		FrameIntervalMinutes: 30,
		FrameCount:           48,
	},
}

// regionOrder is the selector order shown to users
var regionOrder = []string{
	"nationwide", "seoul", "chungcheong", "honam", "gyeongnam",
	"gyeongbuk", "gangwon", "jeju", "eastAsia",
}

// LookupRegion returns the profile registered under key
func LookupRegion(key string) (RegionProfile, bool) {
	p, ok := regions[key]
	return p, ok
}

// Regions returns every region profile in selector order
func Regions() []RegionProfile {
	out := make([]RegionProfile, 0, len(regionOrder))
	for _, key := range regionOrder {
		out = append(out, regions[key])
	}
	return out
}

// RegionKeys returns the sorted list of region keys
func RegionKeys() []string {
	keys := make([]string, 0, len(regions))
	for key := range regions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
