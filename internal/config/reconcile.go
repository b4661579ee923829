package config

// ReconcileConfig holds cross-source thresholds.
// TODO: confirm Tolerance, MajorDelta and CriticalRatio with the product owner before the season starts.
type ReconcileConfig struct {
	Tolerance     int     // count deltas at or below this are ignored
	MajorDelta    int     // deltas above this are at least major
	CriticalRatio float64 // relative delta that escalates a major delta to critical
}

func loadReconcile() ReconcileConfig {
	return ReconcileConfig{
		Tolerance:     nonNegativeIntEnvOrDefault(envReconcileTolerance, defaultReconcileTolerance),
		MajorDelta:    intEnvOrDefault(envReconcileMajorDelta, defaultReconcileMajorDelta),
		CriticalRatio: floatEnvOrDefault(envReconcileCriticalRatio, defaultReconcileCriticalRatio),
	}
}
