package resilience

// RetriesConfig converts a retry count (0 = single attempt) to a RetryConfig.
func RetriesConfig(retries int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = 1 + max(retries, 0)
	return cfg
}
