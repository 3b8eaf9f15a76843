package normalize

import (
	"reflect"
	"testing"

	"github.com/ternarybob/jobhound/internal/models"
)

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		raw       string
		locType   models.LocationType
		locations []string
	}{
		{"Remote - US", models.LocationRemote, []string{"US"}},
		{"Remote", models.LocationRemote, nil},
		{"Anywhere", models.LocationRemote, nil},
		{"Work from home (UK)", models.LocationRemote, []string{"UK"}},
		{"Hybrid - London", models.LocationHybrid, []string{"London, UK"}},
		{"Remote (hybrid, 2 days in office)", models.LocationHybrid, nil},
		{"San Francisco, CA", models.LocationOnsite, []string{"San Francisco, CA"}},
		{"Onsite in Tokyo", models.LocationOnsite, []string{"Tokyo, Japan"}},
		{"New York or London", models.LocationOnsite, []string{"New York, NY", "London, UK"}},
		{"Boulder, CO", models.LocationOnsite, []string{"Boulder, CO"}},
		{"Bengaluru", models.LocationOnsite, []string{"Bangalore, India"}},
		{"Remote, Germany", models.LocationRemote, []string{"Germany"}},
		{"", "", nil},
		{"Flexible", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			locType, locations := normalizeLocation(tt.raw)
			if locType != tt.locType {
				t.Errorf("type = %q, want %q", locType, tt.locType)
			}
			if !reflect.DeepEqual(locations, tt.locations) {
				t.Errorf("locations = %v, want %v", locations, tt.locations)
			}
		})
	}
}

// The same place spelled by the gazetteer and as a City, ST pair must
// come back once.
func TestNormalizeLocationDeduplicates(t *testing.T) {
	_, locations := normalizeLocation("Seattle, WA / Seattle")
	if !reflect.DeepEqual(locations, []string{"Seattle, WA"}) {
		t.Errorf("locations = %v, want single Seattle entry", locations)
	}
}

func TestNormalizeLocationDiscardsUnresolvable(t *testing.T) {
	locType, locations := normalizeLocation("HQ or regional office, TBD")
	if len(locations) != 0 {
		t.Errorf("locations = %v, want none", locations)
	}
	if locType != "" {
		t.Errorf("type = %q, want empty", locType)
	}
}
