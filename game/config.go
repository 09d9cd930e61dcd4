package game

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"cardroom.io/server/util"
)

// TimingConfig carries every timing knob of the session layer. The reminder
// interval/limit and the reconnect grace period are deliberately
// configuration rather than constants.
type TimingConfig struct {
	ReminderIntervalSec uint32 `yaml:"reminderIntervalSec"`
	ReminderLimit       uint32 `yaml:"reminderLimit"`
	ReconnectGraceSec   uint32 `yaml:"reconnectGraceSec"`
	AIActionDelayMillis uint32 `yaml:"aiActionDelayMillis"`
	RoundPauseMillis    uint32 `yaml:"roundPauseMillis"`
	DealPauseMillis     uint32 `yaml:"dealPauseMillis"`
}

func DefaultTimingConfig() TimingConfig {
	return TimingConfig{
		ReminderIntervalSec: 15,
		ReminderLimit:       4,
		ReconnectGraceSec:   120,
		AIActionDelayMillis: 800,
		RoundPauseMillis:    2000,
		DealPauseMillis:     500,
	}
}

func ParseTimingConfig(timingFile string) (TimingConfig, error) {
	bytes, err := os.ReadFile(timingFile)
	if err != nil {
		return TimingConfig{}, errors.Wrap(err, fmt.Sprintf("Error reading timing config file [%s]", timingFile))
	}

	data := DefaultTimingConfig()
	err = yaml.Unmarshal(bytes, &data)
	if err != nil {
		return TimingConfig{}, errors.Wrap(err, fmt.Sprintf("Error parsing timing YAML file [%s]", timingFile))
	}

	data.applyEnvOverrides()
	return data, nil
}

// applyEnvOverrides lets a deployment or test tweak individual knobs without
// editing the YAML file. Unset variables leave the configured values alone.
func (t *TimingConfig) applyEnvOverrides() {
	if v, ok := util.Env.GetReminderSec(); ok {
		t.ReminderIntervalSec = v
	}
	if v, ok := util.Env.GetReminderLimit(); ok {
		t.ReminderLimit = v
	}
	if v, ok := util.Env.GetGraceSec(); ok {
		t.ReconnectGraceSec = v
	}
	if v, ok := util.Env.GetAIDelayMillis(); ok {
		t.AIActionDelayMillis = v
	}
}

func (t TimingConfig) ReminderInterval() time.Duration {
	return time.Duration(t.ReminderIntervalSec) * time.Second
}

func (t TimingConfig) ReconnectGrace() time.Duration {
	return time.Duration(t.ReconnectGraceSec) * time.Second
}

func (t TimingConfig) AIActionDelay() time.Duration {
	return time.Duration(t.AIActionDelayMillis) * time.Millisecond
}

func (t TimingConfig) RoundPause() time.Duration {
	return time.Duration(t.RoundPauseMillis) * time.Millisecond
}

func (t TimingConfig) DealPause() time.Duration {
	return time.Duration(t.DealPauseMillis) * time.Millisecond
}
