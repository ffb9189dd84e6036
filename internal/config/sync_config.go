package config

import "strconv"

type SyncConfig interface {
	GetSyncBatchSize() int
	GetSyncPageSize() int
}

type Sync struct{}

var _ SyncConfig = Sync{}

func (Sync) GetSyncBatchSize() int {
	return intEnv("SYNC_BATCH_SIZE", 500)
}

func (Sync) GetSyncPageSize() int {
	return intEnv("SYNC_PAGE_SIZE", 100)
}

func intEnv(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(GetEnv(envVar, strconv.Itoa(defaultValue)))
	if err != nil || n < 1 {
		return defaultValue
	}
	return n
}
