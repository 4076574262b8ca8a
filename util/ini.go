package util

import (
	"gopkg.in/ini.v1"
)

// Ini returns the keys and values of a section of an ini file.
func Ini(filename string, section string) (map[string]string, error) {
	cfg, err := ini.Load(filename)
	if err != nil {
		return nil, err
	}
	return cfg.Section(section).KeysHash(), nil
}
