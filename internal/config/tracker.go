package config

import (
	"os"
	"path/filepath"
	"time"
)

// Tracker configures the device-side tracker binary.
type Tracker struct {
	APIURL             string
	Source             string
	PollInterval       time.Duration
	CheckpointInterval time.Duration
	DwellThreshold     time.Duration
	DeviceIDFile       string
	DeviceName         string
	DeviceType         string
	UserID             string
	ClassifierFile     string
	OutboxEnabled      bool
	OutboxPath         string
	OutboxCapacity     int
	DeliveryTimeout    time.Duration
	LogLevel           string
}

func LoadTracker() Tracker {
	home, _ := os.UserHomeDir()
	hostname, _ := os.Hostname()
	return Tracker{
		APIURL:             getenv("API_URL", "http://localhost:3000/api"),
		Source:             getenv("TRACKER_SOURCE", "desktop"),
		PollInterval:       getenvDuration("POLL_INTERVAL", 10*time.Second),
		CheckpointInterval: getenvDuration("CHECKPOINT_INTERVAL", 5*time.Minute),
		DwellThreshold:     getenvDuration("DWELL_THRESHOLD", 30*time.Second),
		DeviceIDFile:       getenv("DEVICE_ID_FILE", filepath.Join(home, ".ai-tracker-device-id")),
		DeviceName:         getenv("DEVICE_NAME", hostname),
		DeviceType:         getenv("DEVICE_TYPE", "laptop"),
		UserID:             getenv("USER_ID", ""),
		ClassifierFile:     getenv("CLASSIFIER_FILE", ""),
		OutboxEnabled:      getenvBool("OUTBOX_ENABLED", false),
		OutboxPath:         getenv("OUTBOX_PATH", filepath.Join(home, ".ai-tracker-outbox.json")),
		OutboxCapacity:     getenvInt("OUTBOX_CAPACITY", 256),
		DeliveryTimeout:    getenvDuration("DELIVERY_TIMEOUT", 0),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}
}
