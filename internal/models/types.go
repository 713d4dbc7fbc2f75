package models

import "time"

// Reading is one parsed site overview from the monitoring endpoint
type Reading struct {
	LastUpdateTime time.Time `json:"lastUpdateTime"` // UTC
	LifeTimeEnergy float64   `json:"lifeTimeEnergy"` // Wh
	LastDayEnergy  float64   `json:"lastDayEnergy"`  // Wh
	CurrentPower   float64   `json:"currentPower"`   // W
}

// Snapshot is the flat document written for downstream consumers
type Snapshot struct {
	InstSolarPower float64 `json:"inst_solar_pwr"`
	SolarActual    float64 `json:"solar_act"`
	SolarActualDay float64 `json:"solar_act_day"`
	LastUpdate     int64   `json:"last_update"`
}

// SnapshotOf flattens a reading into its published form
func SnapshotOf(r Reading) Snapshot {
	return Snapshot{
		InstSolarPower: r.CurrentPower,
		SolarActual:    r.LifeTimeEnergy,
		SolarActualDay: r.LastDayEnergy,
		LastUpdate:     r.LastUpdateTime.Unix(),
	}
}
