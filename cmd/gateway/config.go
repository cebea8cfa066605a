package main

import "github.com/ariana-dev/timeline-gateway/internal/env"

type config struct {
	port             string
	databaseURL      string
	maxWebviews      int
	ingestMaxRecords int
	vaultListDefault int
	shutdownTimeoutS int
}

func loadConfig() config {
	return config{
		port:             env.Str("GATEWAY_PORT", "8264"),
		databaseURL:      env.Str("DATABASE_URL", ""),
		maxWebviews:      env.Int("MAX_WEBVIEWS", 100),
		ingestMaxRecords: env.Int("INGEST_MAX_RECORDS", 50000),
		vaultListDefault: env.Int("VAULT_LIST_DEFAULT", 20),
		shutdownTimeoutS: env.Int("SHUTDOWN_TIMEOUT_S", 30),
	}
}
