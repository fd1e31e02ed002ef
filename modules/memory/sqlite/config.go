package sqlite

import (
	"fmt"
	"strings"
	"time"
)

// Config is the memory.sqlite section of the configuration file.
//
//	memory.sqlite:
//	  path: /var/lib/chaingate/memory.db   # default {data_dir}/memory.db
//	  wal: true
//	  busy_timeout: 5s
//	  synchronous: normal
//	  max_records_per_agent: 10000          # 0 disables compaction
//	  compact_schedule: "@hourly"
type Config struct {
	Path               string        `yaml:"path"`
	WAL                *bool         `yaml:"wal"`
	BusyTimeout        time.Duration `yaml:"busy_timeout"`
	Synchronous        string        `yaml:"synchronous"`
	MaxRecordsPerAgent int           `yaml:"max_records_per_agent"`
	CompactSchedule    string        `yaml:"compact_schedule"`
}

const dbFileName = "memory.db"

var syncModes = []string{"off", "normal", "full", "extra"}

func (c *Config) defaults() {
	if c.BusyTimeout == 0 {
		c.BusyTimeout = 5 * time.Second
	}
	if c.Synchronous == "" {
		c.Synchronous = "normal"
	}
}

// walEnabled reports whether journal_mode=WAL is applied. Unset means on.
func (c *Config) walEnabled() bool { return c.WAL == nil || *c.WAL }

// pragmas lists the statements run on the single connection after open.
func (c *Config) pragmas() []string {
	var out []string
	if c.walEnabled() {
		out = append(out, "PRAGMA journal_mode=WAL")
	}
	return append(out,
		fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout.Milliseconds()),
		"PRAGMA synchronous="+strings.ToUpper(c.Synchronous),
	)
}

func (c *Config) validate() error {
	switch {
	case c.BusyTimeout < 0:
		return fmt.Errorf("memory.sqlite: busy_timeout must be non-negative, got %s", c.BusyTimeout)
	case c.MaxRecordsPerAgent < 0:
		return fmt.Errorf("memory.sqlite: max_records_per_agent must be non-negative, got %d", c.MaxRecordsPerAgent)
	case c.Synchronous != "" && !validSync(c.Synchronous):
		return fmt.Errorf("memory.sqlite: synchronous must be one of %s, got %q", strings.Join(syncModes, "|"), c.Synchronous)
	}
	return nil
}

func validSync(mode string) bool {
	for _, m := range syncModes {
		if strings.EqualFold(m, mode) {
			return true
		}
	}
	return false
}
