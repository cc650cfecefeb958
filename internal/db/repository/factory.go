package repository

import "gorm.io/gorm"

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db          *gorm.DB
	sampleRepo  SampleRepository
	rollupRepo  RollupRepository
	deviceRepo  DeviceRepository
	alarmRepo   AlarmRepository
	userRepo    UserRepository
	settingRepo SettingRepository
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(db *gorm.DB) *RepositoryFactory {
	return &RepositoryFactory{
		db: db,
	}
}

// Sample returns the raw sample repository
func (f *RepositoryFactory) Sample() SampleRepository {
	if f.sampleRepo == nil {
		f.sampleRepo = NewSampleRepository(f.db)
	}
	return f.sampleRepo
}

// Rollup returns the daily rollup repository
func (f *RepositoryFactory) Rollup() RollupRepository {
	if f.rollupRepo == nil {
		f.rollupRepo = NewRollupRepository(f.db)
	}
	return f.rollupRepo
}

// Device returns the device repository
func (f *RepositoryFactory) Device() DeviceRepository {
	if f.deviceRepo == nil {
		f.deviceRepo = NewDeviceRepository(f.db)
	}
	return f.deviceRepo
}

// Alarm returns the user alarm repository
func (f *RepositoryFactory) Alarm() AlarmRepository {
	if f.alarmRepo == nil {
		f.alarmRepo = NewAlarmRepository(f.db)
	}
	return f.alarmRepo
}

// User returns the user repository
func (f *RepositoryFactory) User() UserRepository {
	if f.userRepo == nil {
		f.userRepo = NewUserRepository(f.db)
	}
	return f.userRepo
}

// Setting returns the settings repository
func (f *RepositoryFactory) Setting() SettingRepository {
	if f.settingRepo == nil {
		f.settingRepo = NewSettingRepository(f.db)
	}
	return f.settingRepo
}
