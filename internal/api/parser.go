package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

// SiteTimeZone is the civil zone the endpoint reports lastUpdateTime in.
const SiteTimeZone = "Europe/Amsterdam"

const (
	lastUpdateLayout = "2006-01-02 15:04:05"
	powerUnit        = "W"
)

// siteResponse is the subset of the api/v3/sites/<id> document we read:
//
//	{
//	  "siteClassType": "DEFAULT",
//	  "fieldOverview": {
//	    "fieldOverview": {
//	      "lastUpdateTime": "2021-01-31 10:28:12.0",
//	      "lifeTimeData": {"energy": 36180, ...},
//	      "lastDayData": {"energy": 436, ...},
//	      "currentPower": {"currentPower": 179.59799, "unit": "W"},
//	      ...
type siteResponse struct {
	FieldOverview *struct {
		FieldOverview *fieldOverview `json:"fieldOverview"`
	} `json:"fieldOverview"`
}

type fieldOverview struct {
	LastUpdateTime *string     `json:"lastUpdateTime"`
	LifeTimeData   *energyData `json:"lifeTimeData"`
	LastDayData    *energyData `json:"lastDayData"`
	CurrentPower   *powerData  `json:"currentPower"`
}

type energyData struct {
	Energy *float64 `json:"energy"`
}

type powerData struct {
	CurrentPower *float64 `json:"currentPower"`
	Unit         *string  `json:"unit"`
}

var siteLocation = mustLoadLocation(SiteTimeZone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// ParseSite extracts a reading from the raw site document. Energies are
// passed through in Wh, power in W, and lastUpdateTime is converted from
// site local time to UTC.
func ParseSite(text string) (models.Reading, error) {
	var doc siteResponse
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return models.Reading{}, &ParseError{Field: "document", Reason: "invalid json", Err: err}
	}
	if doc.FieldOverview == nil || doc.FieldOverview.FieldOverview == nil {
		return models.Reading{}, &ParseError{Field: "fieldOverview.fieldOverview", Reason: "missing"}
	}
	fo := doc.FieldOverview.FieldOverview

	if fo.LastUpdateTime == nil {
		return models.Reading{}, &ParseError{Field: "lastUpdateTime", Reason: "missing"}
	}
	updated, err := parseLastUpdate(*fo.LastUpdateTime, siteLocation)
	if err != nil {
		return models.Reading{}, err
	}

	if fo.LifeTimeData == nil || fo.LifeTimeData.Energy == nil {
		return models.Reading{}, &ParseError{Field: "lifeTimeData.energy", Reason: "missing"}
	}
	if fo.LastDayData == nil || fo.LastDayData.Energy == nil {
		return models.Reading{}, &ParseError{Field: "lastDayData.energy", Reason: "missing"}
	}
	if fo.CurrentPower == nil || fo.CurrentPower.CurrentPower == nil {
		return models.Reading{}, &ParseError{Field: "currentPower.currentPower", Reason: "missing"}
	}
	if fo.CurrentPower.Unit == nil || *fo.CurrentPower.Unit != powerUnit {
		unit := "<missing>"
		if fo.CurrentPower.Unit != nil {
			unit = *fo.CurrentPower.Unit
		}
		return models.Reading{}, &ParseError{
			Field:  "currentPower.unit",
			Reason: fmt.Sprintf("expected %q, got %q", powerUnit, unit),
		}
	}

	return models.Reading{
		LastUpdateTime: updated,
		LifeTimeEnergy: *fo.LifeTimeData.Energy,
		LastDayEnergy:  *fo.LastDayData.Energy,
		CurrentPower:   *fo.CurrentPower.CurrentPower,
	}, nil
}

// parseLastUpdate drops sub-second precision and interprets the remaining
// "YYYY-MM-DD HH:MM:SS" as wall time in loc.
func parseLastUpdate(s string, loc *time.Location) (time.Time, error) {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if len(s) != len(lastUpdateLayout) {
		return time.Time{}, &ParseError{
			Field:  "lastUpdateTime",
			Reason: fmt.Sprintf("expected %d characters, got %q", len(lastUpdateLayout), s),
		}
	}

	naive, err := time.Parse(lastUpdateLayout, s)
	if err != nil {
		return time.Time{}, &ParseError{Field: "lastUpdateTime", Reason: "malformed", Err: err}
	}

	local, err := localize(naive, loc)
	if err != nil {
		return time.Time{}, &ParseError{Field: "lastUpdateTime", Reason: err.Error()}
	}
	return local.UTC(), nil
}

// localize resolves the wall clock of naive (read in UTC) to an instant in
// loc. A wall time that occurs twice (the fall-back hour) resolves to the
// standard time offset; that only happens at night, when nothing is
// produced anyway. A wall time skipped by the spring-forward jump is an
// error.
func localize(naive time.Time, loc *time.Location) (time.Time, error) {
	var candidates []time.Time
	seen := make(map[int]bool, 2)
	for _, probe := range []time.Time{naive.Add(-12 * time.Hour), naive.Add(12 * time.Hour)} {
		_, offset := probe.In(loc).Zone()
		if seen[offset] {
			continue
		}
		seen[offset] = true

		c := naive.Add(-time.Duration(offset) * time.Second)
		if _, o := c.In(loc).Zone(); o == offset {
			candidates = append(candidates, c)
		}
	}

	switch len(candidates) {
	case 0:
		return time.Time{}, fmt.Errorf("%s does not exist in %s", naive.Format(lastUpdateLayout), loc)
	case 1:
		return candidates[0].In(loc), nil
	}
	for _, c := range candidates {
		if !c.In(loc).IsDST() {
			return c.In(loc), nil
		}
	}
	return candidates[0].In(loc), nil
}
