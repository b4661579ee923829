package config

import "time"

// SchedulerConfig controls day planning, schedule sync and the live queue.
type SchedulerConfig struct {
	SyncEnabled       bool
	TickInterval      time.Duration // live loop cadence; one due task per tick
	Timezone          string        // calendar the schedule dates are expressed in
	ExpectedSlate     int           // typical number of games on a full day
	AvgGameDuration   time.Duration
	LeadWindow        time.Duration // enqueue games starting within this window
	BackfillDays      int
	BackfillInterval  time.Duration // delay between backfill fetches
	DailyHour         int           // local hour (0-23) for daily backfill/prune
	RetentionDays     int
	MaxNoUpdateCycles int
	MaxSilence        time.Duration
}

func loadScheduler() SchedulerConfig {
	hour := nonNegativeIntEnvOrDefault(envDailyHour, defaultDailyHour)
	if hour > 23 {
		hour = defaultDailyHour
	}
	return SchedulerConfig{
		SyncEnabled:       boolEnvOrDefault(envSyncEnabled, defaultSyncEnabled),
		TickInterval:      durationEnvOrDefault(envTickInterval, defaultTickInterval),
		Timezone:          envOrDefault(envTimezone, defaultTimezone),
		ExpectedSlate:     intEnvOrDefault(envExpectedSlate, defaultExpectedSlate),
		AvgGameDuration:   durationEnvOrDefault(envAvgGameDuration, defaultAvgGameDuration),
		LeadWindow:        durationEnvOrDefault(envLeadWindow, defaultLeadWindow),
		BackfillDays:      nonNegativeIntEnvOrDefault(envBackfillDays, defaultBackfillDays),
		BackfillInterval:  durationEnvOrDefault(envBackfillInterval, defaultBackfillInterval),
		DailyHour:         hour,
		RetentionDays:     intEnvOrDefault(envRetentionDays, defaultRetentionDays),
		MaxNoUpdateCycles: intEnvOrDefault(envMaxNoUpdateCycles, defaultMaxNoUpdateCycles),
		MaxSilence:        durationEnvOrDefault(envMaxSilence, defaultMaxSilence),
	}
}
