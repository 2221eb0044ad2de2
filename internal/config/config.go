// Package config loads cmd/sectorfs's settings from an optional TOML file,
// the way the teacher's filecache persists its directory-entry/attribute
// cache: BurntSushi/toml decoding straight into a plain struct.
package config

import (
	"github.com/BurntSushi/toml"
)

// Config holds the settings needed to bring up a device and filesystem.
type Config struct {
	// Device is the path to the backing file the block device reads and
	// writes sectors against.
	Device string `toml:"device"`
	// Sectors is the fixed sector count of the device: a newly formatted
	// device file is created with it, and an existing one is mounted as
	// holding that many sectors.
	Sectors uint32 `toml:"sectors"`
	// CacheSectors is the number of entries in the write-back sector
	// cache (spec's MAX_NUM_SECTORS).
	CacheSectors int `toml:"cache_sectors"`
	// Format, if true, formats Device fresh instead of mounting it.
	Format bool `toml:"format"`
}

// Default returns the configuration cmd/sectorfs falls back to when no
// config file is given.
func Default() Config {
	return Config{
		Device:       "sectorfs.img",
		Sectors:      8192,
		CacheSectors: 64,
		Format:       false,
	}
}

// Load decodes path into a copy of Default, leaving any field the file
// omits at its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
